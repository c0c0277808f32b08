package verify

import (
	"bmb/internal/cir"
)

// EntryIndex keys facts that hold at function entry; ExitIndex keys
// facts about the return binding at function exit.
const (
	EntryIndex = 0
	ExitIndex  = -1
)

// Point identifies where in a function a proven fact holds.
type Point struct {
	Function string
	Index    int
}

// ProvenFact is a proposition the verifier certified at a program
// point. Entry facts describe the parameters assuming the caller met
// the preconditions; exit facts describe the return binding.
type ProvenFact struct {
	Point Point
	Prop  cir.Proposition
}

// CollectProvenFacts projects a function's verified obligations into
// proven facts the optimizer can attach to MIR.
func CollectProvenFacts(fn *cir.Function, report *FunctionReport) []ProvenFact {
	var out []ProvenFact
	add := func(index int, prop cir.Proposition) {
		if prop == nil {
			return
		}
		out = append(out, ProvenFact{
			Point: Point{Function: fn.Name, Index: index},
			Prop:  prop,
		})
	}

	for i, ob := range report.Preconditions {
		if ob.Result.IsVerified() && i < len(fn.Preconditions) {
			add(EntryIndex, fn.Preconditions[i].Prop)
		}
	}
	for i, ob := range report.Postconditions {
		if ob.Result.IsVerified() && i < len(fn.Postconditions) {
			add(ExitIndex, fn.Postconditions[i].Prop)
		}
	}
	return out
}
