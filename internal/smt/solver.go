package smt

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

// Solver drives an external SMT solver subprocess. Scripts travel
// over a pipe; nothing touches the filesystem unless a dump directory
// is configured for debugging.
type Solver struct {
	path    string
	timeout time.Duration
	dumpDir string
	log     commonlog.Logger

	dumpSeq int
}

// NewSolver creates a solver using the z3 binary on PATH with the
// default per-obligation timeout.
func NewSolver() *Solver {
	return &Solver{
		path:    "z3",
		timeout: 10 * time.Second,
		log:     commonlog.GetLogger("smt.solver"),
	}
}

// WithPath overrides the solver binary.
func (s *Solver) WithPath(path string) *Solver {
	s.path = path
	return s
}

// WithTimeout sets the per-obligation wall-clock timeout.
func (s *Solver) WithTimeout(d time.Duration) *Solver {
	s.timeout = d
	return s
}

// WithDumpDir makes the solver also write each script to a file;
// debugging only.
func (s *Solver) WithDumpDir(dir string) *Solver {
	s.dumpDir = dir
	return s
}

// Timeout returns the configured per-obligation timeout.
func (s *Solver) Timeout() time.Duration { return s.timeout }

// IsAvailable reports whether the solver binary can be found.
func (s *Solver) IsAvailable() bool {
	_, err := exec.LookPath(s.path)
	return err == nil
}

// Solve runs one script and interprets the answer. A deadline expiry
// yields StatusTimeout, not an error; process failures are errors the
// caller maps to Unknown.
func (s *Solver) Solve(ctx context.Context, script string) (Result, error) {
	if s.dumpDir != "" {
		s.dumpScript(script)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.path, "-in", "-smt2")
	cmd.Stdin = strings.NewReader(script)
	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		s.log.Debugf("obligation timed out after %s", s.timeout)
		return Result{Status: StatusTimeout}, nil
	}
	text := strings.TrimSpace(string(output))
	if err != nil && text == "" {
		return Result{}, errors.Wrapf(err, "running %s", s.path)
	}

	return parseSolverOutput(text)
}

func parseSolverOutput(text string) (Result, error) {
	line, rest, _ := strings.Cut(text, "\n")
	switch strings.TrimSpace(line) {
	case "unsat":
		return Result{Status: StatusUnsat}, nil
	case "unknown":
		return Result{Status: StatusUnknown}, nil
	case "sat":
		model, err := ParseModel(rest)
		if err != nil {
			// A sat answer with an unreadable model still refutes the
			// obligation; keep the answer, drop the assignments.
			return Result{Status: StatusSat}, nil
		}
		return Result{Status: StatusSat, Model: model}, nil
	case "timeout":
		return Result{Status: StatusTimeout}, nil
	}
	return Result{}, errors.Errorf("unrecognized solver output %q", line)
}

func (s *Solver) dumpScript(script string) {
	s.dumpSeq++
	path := filepath.Join(s.dumpDir, fmt.Sprintf("obligation_%04d.smt2", s.dumpSeq))
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		s.log.Errorf("dumping script: %v", err)
	}
}
