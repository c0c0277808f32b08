package codegen

import (
	"github.com/pkg/errors"

	"bmb/internal/mir"
)

// Emitter is the boundary to the external code generator. It
// consumes a frozen MIR program whose operands are all typable and
// whose functions satisfy the MIR invariants, writes the object file
// to the path it is given, and returns an error on failure.
type Emitter interface {
	// Compile emits an object file for the program at output.
	Compile(prog *mir.Program, output string) error
}

// ErrBackendNotAvailable is returned by the stub emitter; the real
// LLVM backend links in elsewhere.
var ErrBackendNotAvailable = errors.New("code generation backend is not available")

// Stub is the emitter used when no backend is linked; it validates
// the hand-off contract and always fails with ErrBackendNotAvailable.
type Stub struct{}

// NewStub creates the stub emitter.
func NewStub() *Stub { return &Stub{} }

// Compile checks the program satisfies the emitter's preconditions,
// then reports the backend as unavailable.
func (*Stub) Compile(prog *mir.Program, output string) error {
	if err := mir.CheckProgram(prog); err != nil {
		return errors.Wrap(err, "program violates emitter preconditions")
	}
	return errors.Wrapf(ErrBackendNotAvailable, "emitting %s", output)
}
