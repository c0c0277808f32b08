package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"bmb/internal/ast"
	"bmb/internal/cir"
	"bmb/internal/mir"
	"bmb/internal/verify"
)

// Driver runs the verifying middle end: contract extraction, SMT
// discharge, MIR lowering, fact attachment, and optimization. Within
// a function each phase is single-threaded; across functions the
// optimizer fans out, and results always come back in declaration
// order.
type Driver struct {
	solver   verify.Solver
	level    mir.OptLevel
	eval     mir.ConstEvaluator
	proofDB  *verify.ProofDatabase
	workers  int
	deny     bool
	selfTest bool
	log      commonlog.Logger
}

// ErrUnverified aborts compilation under --deny-unverified.
var ErrUnverified = errors.New("verification failed")

// NewDriver creates a driver over the given solver.
func NewDriver(solver verify.Solver) *Driver {
	return &Driver{
		solver:  solver,
		level:   mir.OptRelease,
		workers: runtime.NumCPU(),
		log:     commonlog.GetLogger("pipeline"),
	}
}

// WithOptLevel selects the optimization level.
func (d *Driver) WithOptLevel(level mir.OptLevel) *Driver {
	d.level = level
	return d
}

// WithConstEvaluator installs the external @const interpreter.
func (d *Driver) WithConstEvaluator(eval mir.ConstEvaluator) *Driver {
	d.eval = eval
	return d
}

// WithProofDatabase attaches the cross-run proof store.
func (d *Driver) WithProofDatabase(db *verify.ProofDatabase) *Driver {
	d.proofDB = db
	return d
}

// WithWorkers bounds the cross-function fan-out.
func (d *Driver) WithWorkers(n int) *Driver {
	if n > 0 {
		d.workers = n
	}
	return d
}

// WithDenyUnverified makes verification failures fatal.
func (d *Driver) WithDenyUnverified(deny bool) *Driver {
	d.deny = deny
	return d
}

// WithSelfCheck runs the MIR invariant checker after every pass.
func (d *Driver) WithSelfCheck(on bool) *Driver {
	d.selfTest = on
	return d
}

// Result is everything the middle end produces for one program.
type Result struct {
	Report  *verify.Report
	Facts   []verify.ProvenFact
	Program *mir.Program
	Spans   mir.SpanMap
	Stats   *mir.Stats
}

// Run drives a type-checked program down to optimized MIR.
func (d *Driver) Run(ctx context.Context, prog *ast.Program) (*Result, error) {
	d.log.Infof("verifying %s", prog.Header.Name)
	cirProg := cir.ExtractProgram(prog)

	verifier := verify.NewContractVerifier(d.solver)
	if d.proofDB != nil {
		verifier = verifier.WithDatabase(d.proofDB)
	}
	report, facts := verifier.VerifyProgram(ctx, cirProg)

	if d.deny && !report.AllVerified() {
		return &Result{Report: report, Facts: facts},
			errors.Wrapf(ErrUnverified, "%d of %d functions failed",
				len(report.Functions)-report.VerifiedCount(), len(report.Functions))
	}

	d.log.Infof("lowering %s", prog.Header.Name)
	mirProg, spans := mir.LowerProgram(prog)
	attachFacts(mirProg, facts)

	stats, err := d.optimize(ctx, mirProg)
	if err != nil {
		return nil, err
	}

	return &Result{
		Report:  report,
		Facts:   facts,
		Program: mirProg,
		Spans:   spans,
		Stats:   stats,
	}, nil
}

// attachFacts installs proven facts on their functions before any
// proof-guided pass runs.
func attachFacts(prog *mir.Program, facts []verify.ProvenFact) {
	byFunction := make(map[string]map[int][]cir.Proposition)
	for _, fact := range facts {
		if fact.Point.Index < 0 {
			// Exit facts describe the return binding; the passes only
			// consume dominating entry facts.
			continue
		}
		if byFunction[fact.Point.Function] == nil {
			byFunction[fact.Point.Function] = make(map[int][]cir.Proposition)
		}
		byFunction[fact.Point.Function][fact.Point.Index] = append(
			byFunction[fact.Point.Function][fact.Point.Index], fact.Prop)
	}
	for _, fn := range prog.Functions {
		if fnFacts, ok := byFunction[fn.Name]; ok {
			mir.AttachProvenFacts(fn, fnFacts)
		}
	}
}

// optimize fans the pass pipeline out across functions. No pass holds
// shared mutable state across functions, so each worker owns its
// function outright; declaration order of the slice is untouched.
func (d *Driver) optimize(ctx context.Context, prog *mir.Program) (*mir.Stats, error) {
	pipe := mir.ForLevel(d.level, d.eval)
	pipe.SetSelfCheck(d.selfTest)

	pureCSE := mir.NewPureFunctionCSE(prog)
	var constEval *mir.ConstFunctionEval
	if d.eval != nil {
		constEval = mir.NewConstFunctionEval(prog, d.eval)
	}

	stats := mir.NewStats()
	var mu sync.Mutex

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(d.workers)
	for _, fn := range prog.Functions {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fnStats := pipe.OptimizeFunction(fn, pureCSE, constEval)
			mu.Lock()
			stats.Merge(fnStats)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	d.log.Infof("optimized %d function(s) at %s in %d iteration(s)",
		len(prog.Functions), d.level, stats.Iterations)
	return stats, nil
}
