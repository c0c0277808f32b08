package verify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"bmb/internal/smt"
)

// Obligation pairs a contract name with its verification outcome.
type Obligation struct {
	Name   string
	Result smt.VerifyResult
}

// FunctionReport collects one function's obligations, warnings, and
// trust state.
type FunctionReport struct {
	Name           string
	Preconditions  []Obligation
	Postconditions []Obligation
	Invariants     []Obligation
	Message        string
	Trusted        bool
	Warnings       []string
}

// NewFunctionReport creates an empty report for a function.
func NewFunctionReport(name string) *FunctionReport {
	return &FunctionReport{Name: name}
}

func (r *FunctionReport) obligations() []Obligation {
	all := make([]Obligation, 0, len(r.Preconditions)+len(r.Postconditions)+len(r.Invariants))
	all = append(all, r.Preconditions...)
	all = append(all, r.Postconditions...)
	all = append(all, r.Invariants...)
	return all
}

// IsVerified reports whether every obligation was discharged.
func (r *FunctionReport) IsVerified() bool {
	for _, ob := range r.obligations() {
		if !ob.Result.IsVerified() {
			return false
		}
	}
	return true
}

// HasFailure reports whether any obligation has a counterexample.
func (r *FunctionReport) HasFailure() bool {
	for _, ob := range r.obligations() {
		if ob.Result.IsFailure() {
			return true
		}
	}
	return false
}

// Report is a whole-program verification report.
type Report struct {
	Functions []*FunctionReport
}

// AllVerified reports whether every function verified.
func (r *Report) AllVerified() bool {
	for _, f := range r.Functions {
		if !f.IsVerified() {
			return false
		}
	}
	return true
}

// VerifiedCount counts fully verified functions.
func (r *Report) VerifiedCount() int {
	n := 0
	for _, f := range r.Functions {
		if f.IsVerified() {
			n++
		}
	}
	return n
}

// FailedCount counts functions with at least one counterexample.
func (r *Report) FailedCount() int {
	n := 0
	for _, f := range r.Functions {
		if f.HasFailure() {
			n++
		}
	}
	return n
}

var (
	okMark      = color.New(color.FgGreen).Sprint("✓")
	failMark    = color.New(color.FgRed).Sprint("✗")
	unknownMark = color.New(color.FgYellow).Sprint("?")
	noSolver    = color.New(color.FgRed).Sprint("!")
	warnMark    = color.New(color.FgYellow).Sprint("⚠")
)

// Render prints the report: one line per obligation, warnings under
// their function, and a summary footer.
func (r *Report) Render() string {
	var b strings.Builder
	for _, fn := range r.Functions {
		fn.render(&b)
	}

	b.WriteByte('\n')
	if r.AllVerified() {
		fmt.Fprintf(&b, "All %d function(s) verified successfully.\n", len(r.Functions))
	} else {
		fmt.Fprintf(&b, "Verified: %d/%d, Failed: %d\n",
			r.VerifiedCount(), len(r.Functions), r.FailedCount())
	}
	return b.String()
}

func (r *FunctionReport) render(b *strings.Builder) {
	renderGroup := func(kind string, obs []Obligation) {
		for _, ob := range obs {
			switch ob.Result.Kind {
			case smt.KindVerified:
				fmt.Fprintf(b, "%s %s: %s '%s' verified\n", okMark, r.Name, kind, ob.Name)
			case smt.KindFailed:
				fmt.Fprintf(b, "%s %s: %s '%s' violated\n", failMark, r.Name, kind, ob.Name)
				if ob.Result.Counterexample != nil {
					fmt.Fprintf(b, "  %s\n", ob.Result.Counterexample)
				}
			case smt.KindUnknown:
				fmt.Fprintf(b, "%s %s: %s '%s' unknown (%s)\n", unknownMark, r.Name, kind, ob.Name, ob.Result.Message)
			case smt.KindSolverUnavailable:
				fmt.Fprintf(b, "%s %s: solver not available for %s '%s'\n", noSolver, r.Name, kind, ob.Name)
			}
		}
	}

	renderGroup("pre", r.Preconditions)
	renderGroup("post", r.Postconditions)
	renderGroup("invariant", r.Invariants)

	if r.Message != "" {
		fmt.Fprintf(b, "  Note: %s\n", r.Message)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(b, "%s %s: %s\n", warnMark, r.Name, w)
	}
}

// The JSON renderer carries the same fields as the text renderer.

type jsonObligation struct {
	Name           string            `json:"name"`
	Status         string            `json:"status"`
	Message        string            `json:"message,omitempty"`
	Counterexample map[string]string `json:"counterexample,omitempty"`
}

type jsonFunction struct {
	Name           string           `json:"name"`
	Verified       bool             `json:"verified"`
	Trusted        bool             `json:"trusted"`
	Preconditions  []jsonObligation `json:"preconditions,omitempty"`
	Postconditions []jsonObligation `json:"postconditions,omitempty"`
	Invariants     []jsonObligation `json:"invariants,omitempty"`
	Message        string           `json:"message,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
}

type jsonReport struct {
	Functions []jsonFunction `json:"functions"`
	Verified  int            `json:"verified"`
	Failed    int            `json:"failed"`
	Total     int            `json:"total"`
}

// RenderJSON renders the machine-readable report.
func (r *Report) RenderJSON() ([]byte, error) {
	out := jsonReport{
		Verified: r.VerifiedCount(),
		Failed:   r.FailedCount(),
		Total:    len(r.Functions),
	}
	for _, fn := range r.Functions {
		out.Functions = append(out.Functions, jsonFunction{
			Name:           fn.Name,
			Verified:       fn.IsVerified(),
			Trusted:        fn.Trusted,
			Preconditions:  jsonObligations(fn.Preconditions),
			Postconditions: jsonObligations(fn.Postconditions),
			Invariants:     jsonObligations(fn.Invariants),
			Message:        fn.Message,
			Warnings:       fn.Warnings,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

func jsonObligations(obs []Obligation) []jsonObligation {
	var out []jsonObligation
	for _, ob := range obs {
		jo := jsonObligation{Name: ob.Name, Message: ob.Result.Message}
		switch ob.Result.Kind {
		case smt.KindVerified:
			jo.Status = "verified"
		case smt.KindFailed:
			jo.Status = "failed"
			if ce := ob.Result.Counterexample; ce != nil {
				jo.Counterexample = make(map[string]string, len(ce.Assignments))
				for _, a := range ce.Assignments {
					jo.Counterexample[a.Name] = a.Value
				}
			}
		case smt.KindUnknown:
			jo.Status = "unknown"
		case smt.KindSolverUnavailable:
			jo.Status = "solver_not_available"
		}
		out = append(out, jo)
	}
	return out
}
