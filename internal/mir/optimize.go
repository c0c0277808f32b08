package mir

// Optimization pipeline: an ordered pass list run per function to a
// fixed point, bounded by a configured iteration cap. Debug runs
// nothing, Release the standard set, Aggressive adds contract-based
// and whole-program passes.

// Pass is a single MIR transformation. Run returns whether the
// function changed.
type Pass interface {
	Name() string
	Run(fn *Function) bool
}

// OptLevel selects the pass set.
type OptLevel int

const (
	OptDebug OptLevel = iota
	OptRelease
	OptAggressive
)

func (l OptLevel) String() string {
	switch l {
	case OptDebug:
		return "debug"
	case OptRelease:
		return "release"
	}
	return "aggressive"
}

// ConstEvaluator evaluates a @const function over constant arguments.
// The interpreter behind it is an external collaborator; the
// interface stays narrow: constants in, constant out, no I/O.
type ConstEvaluator interface {
	EvalConst(fn string, args []Constant) (Constant, bool)
}

// Stats records pass activations and the final iteration count.
type Stats struct {
	Iterations int
	PassCounts map[string]int
}

// NewStats creates an empty statistics record.
func NewStats() *Stats {
	return &Stats{PassCounts: make(map[string]int)}
}

// Record notes one activation of a pass.
func (s *Stats) Record(name string) { s.PassCounts[name]++ }

// Merge folds another record into this one.
func (s *Stats) Merge(other *Stats) {
	for name, count := range other.PassCounts {
		s.PassCounts[name] += count
	}
	if other.Iterations > s.Iterations {
		s.Iterations = other.Iterations
	}
}

// Pipeline owns the ordered pass list and the iteration cap.
type Pipeline struct {
	passes        []Pass
	maxIterations int
	// selfCheck runs the MIR checker after every pass; a violation is
	// a compiler bug, reported by panicking in tests.
	selfCheck bool
	// wholeProgram enables the program-level passes (pure-function
	// CSE, const-function evaluation); set at the aggressive level.
	wholeProgram bool
}

// NewPipeline creates an empty pipeline with the default cap.
func NewPipeline() *Pipeline {
	return &Pipeline{maxIterations: 10}
}

// ForLevel builds the standard pipeline for an optimization level.
// The eval argument is not used here; the evaluator passed to Optimize
// decides const-function folding, and a nil one disables it.
func ForLevel(level OptLevel, eval ConstEvaluator) *Pipeline {
	p := NewPipeline()
	switch level {
	case OptDebug:
		// Debug keeps the MIR untouched.
	case OptRelease:
		p.Add(&AlgebraicSimplification{})
		p.Add(&ConstantFolding{})
		p.Add(&DeadCodeElimination{})
		p.Add(&SimplifyBranches{})
		p.Add(&CopyPropagation{})
		p.Add(&TailCallMarking{})
	case OptAggressive:
		p.wholeProgram = true
		p.Add(&AlgebraicSimplification{})
		p.Add(&ConstantFolding{})
		p.Add(&DeadCodeElimination{})
		p.Add(&SimplifyBranches{})
		p.Add(&CopyPropagation{})
		p.Add(&CommonSubexpressionElimination{})
		p.Add(&BoundsCheckElimination{})
		p.Add(&NullCheckElimination{})
		p.Add(&DivisionCheckElimination{})
		p.Add(&ProofUnreachableElimination{})
		p.Add(&TailCallMarking{})
	}
	return p
}

// Add appends a pass.
func (p *Pipeline) Add(pass Pass) { p.passes = append(p.passes, pass) }

// SetMaxIterations overrides the fixed-point cap.
func (p *Pipeline) SetMaxIterations(n int) { p.maxIterations = n }

// SetSelfCheck enables the debug MIR checker between passes.
func (p *Pipeline) SetSelfCheck(on bool) { p.selfCheck = on }

// Optimize runs the pipeline over every function. The whole-program
// passes (pure-function CSE, const evaluation) are built once from
// the program and run alongside the per-function passes.
func (p *Pipeline) Optimize(prog *Program, eval ConstEvaluator) *Stats {
	stats := NewStats()

	pureCSE := NewPureFunctionCSE(prog)
	var constEval *ConstFunctionEval
	if eval != nil {
		constEval = NewConstFunctionEval(prog, eval)
	}

	for _, fn := range prog.Functions {
		fnStats := p.OptimizeFunction(fn, pureCSE, constEval)
		stats.Merge(fnStats)
	}
	return stats
}

// OptimizeFunction runs the pipeline on one function to a fixed
// point. The whole-program passes may be nil; the parallel driver
// builds them once and shares them read-only across workers.
func (p *Pipeline) OptimizeFunction(fn *Function, pureCSE *PureFunctionCSE, constEval *ConstFunctionEval) *Stats {
	stats := NewStats()
	iteration := 0

	for {
		changed := false
		iteration++

		for _, pass := range p.passes {
			// The proof-guided passes need fact scopes computed on the
			// current CFG; stale facts from earlier iterations must
			// not leak through pass mutations.
			if pass.Run(fn) {
				changed = true
				stats.Record(pass.Name())
			}
			if p.selfCheck {
				if err := CheckFunction(fn); err != nil {
					panic("MIR invariant violated after " + pass.Name() + ": " + err.Error())
				}
			}
		}

		if p.wholeProgram && pureCSE != nil {
			if pureCSE.Run(fn) {
				changed = true
				stats.Record(pureCSE.Name())
			}
		}
		if p.wholeProgram && constEval != nil {
			if constEval.Run(fn) {
				changed = true
				stats.Record(constEval.Name())
			}
		}

		if !changed || iteration >= p.maxIterations {
			break
		}
	}

	stats.Iterations = iteration
	return stats
}
