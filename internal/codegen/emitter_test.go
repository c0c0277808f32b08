package codegen

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmb/internal/mir"
)

func validProgram() *mir.Program {
	return &mir.Program{Functions: []*mir.Function{{
		Name:    "id",
		Params:  []mir.Local{{Name: "x", Ty: mir.I64{}}},
		RetTy:   mir.I64{},
		RetName: "__ret__",
		Blocks: []*mir.Block{{
			Label: "entry",
			Term:  &mir.ReturnTerm{Value: mir.Place{Name: "x"}},
		}},
	}}}
}

func TestStubReportsBackendUnavailable(t *testing.T) {
	err := NewStub().Compile(validProgram(), "out.o")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackendNotAvailable))
}

func TestStubRejectsInvalidMIR(t *testing.T) {
	broken := &mir.Program{Functions: []*mir.Function{{
		Name: "broken",
		Blocks: []*mir.Block{{
			Label: "entry",
			Term:  &mir.GotoTerm{Label: "nowhere"},
		}},
	}}}

	err := NewStub().Compile(broken, "out.o")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBackendNotAvailable))
	assert.Contains(t, err.Error(), "emitter preconditions")
}
