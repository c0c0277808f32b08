package mir

import "fmt"

// CommonSubexpressionElimination reuses prior results of identical
// pure computations (binary, unary, cast), keyed by (op, lhs, rhs):
// within a block always, and across blocks when guarded by dominance.
type CommonSubexpressionElimination struct{}

func (CommonSubexpressionElimination) Name() string { return "common-subexpression-elimination" }

type exprKey struct {
	kind string
	op   int
	lhs  string
	rhs  string
}

func (CommonSubexpressionElimination) Run(fn *Function) bool {
	changed := false
	dom := Dominators(fn)
	defCounts := make(map[string]int)
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if dest, ok := InstDest(inst); ok {
				defCounts[dest.Name]++
			}
		}
	}
	params := paramSet(fn)
	stable := func(op Operand) bool {
		p, ok := op.(Place)
		if !ok {
			return true
		}
		if _, isParam := params[p.Name]; isParam {
			return true
		}
		return defCounts[p.Name] == 1
	}

	type available struct {
		dest  Place
		block string
	}
	seen := make(map[exprKey]available)

	for _, block := range fn.Blocks {
		for idx, inst := range block.Insts {
			if !IsPureCompute(inst) {
				continue
			}
			dest, _ := InstDest(inst)
			if defCounts[dest.Name] != 1 {
				continue
			}

			key, ok := computeKey(inst)
			if !ok {
				continue
			}
			operandsStable := true
			for _, op := range InstOperands(inst) {
				if !stable(op) {
					operandsStable = false
					break
				}
			}
			if !operandsStable {
				continue
			}

			if prior, found := seen[key]; found {
				// Cross-block reuse requires the defining block to
				// dominate this one; same-block reuse is always fine.
				if prior.block == block.Label || dom[block.Label][prior.block] {
					block.Insts[idx] = &CopyInst{Dest: dest, Src: prior.dest}
					changed = true
					continue
				}
			}
			seen[key] = available{dest: dest, block: block.Label}
		}
	}
	return changed
}

func computeKey(inst Inst) (exprKey, bool) {
	switch i := inst.(type) {
	case *BinOpInst:
		return exprKey{kind: "bin", op: int(i.Op), lhs: i.Lhs.String(), rhs: i.Rhs.String()}, true
	case *UnaryOpInst:
		return exprKey{kind: "un", op: int(i.Op), lhs: i.Src.String()}, true
	case *CastInst:
		return exprKey{kind: "cast", lhs: i.Src.String(), rhs: fmt.Sprintf("%s->%s", i.From, i.To)}, true
	}
	return exprKey{}, false
}

// PureFunctionCSE reuses results of calls to @pure functions with
// identical argument operands within a function.
type PureFunctionCSE struct {
	pure map[string]bool
}

// NewPureFunctionCSE collects the program's @pure functions.
func NewPureFunctionCSE(prog *Program) *PureFunctionCSE {
	pure := make(map[string]bool)
	for _, fn := range prog.Functions {
		if fn.IsPure {
			pure[fn.Name] = true
		}
	}
	return &PureFunctionCSE{pure: pure}
}

func (p *PureFunctionCSE) Name() string { return "pure-function-cse" }

func (p *PureFunctionCSE) Run(fn *Function) bool {
	if len(p.pure) == 0 {
		return false
	}
	changed := false
	dom := Dominators(fn)

	type available struct {
		dest  Place
		block string
	}
	seen := make(map[string]available)

	for _, block := range fn.Blocks {
		for idx, inst := range block.Insts {
			call, ok := inst.(*CallInst)
			if !ok || call.Dest == nil || !p.pure[call.Func] {
				continue
			}
			key := call.Func
			for _, arg := range call.Args {
				key += "|" + arg.String()
			}
			if prior, found := seen[key]; found {
				if prior.block == block.Label || dom[block.Label][prior.block] {
					block.Insts[idx] = &CopyInst{Dest: *call.Dest, Src: prior.dest}
					changed = true
					continue
				}
			}
			seen[key] = available{dest: *call.Dest, block: block.Label}
		}
	}
	return changed
}

// ConstFunctionEval folds calls to @const functions over constant
// arguments through the external evaluator.
type ConstFunctionEval struct {
	constFns map[string]bool
	eval     ConstEvaluator
}

// NewConstFunctionEval collects the program's @const functions.
func NewConstFunctionEval(prog *Program, eval ConstEvaluator) *ConstFunctionEval {
	constFns := make(map[string]bool)
	for _, fn := range prog.Functions {
		if fn.IsConst {
			constFns[fn.Name] = true
		}
	}
	return &ConstFunctionEval{constFns: constFns, eval: eval}
}

func (c *ConstFunctionEval) Name() string { return "const-function-eval" }

func (c *ConstFunctionEval) Run(fn *Function) bool {
	if len(c.constFns) == 0 {
		return false
	}
	changed := false
	for _, block := range fn.Blocks {
		for idx, inst := range block.Insts {
			call, ok := inst.(*CallInst)
			if !ok || call.Dest == nil || !c.constFns[call.Func] {
				continue
			}
			args := make([]Constant, 0, len(call.Args))
			allConst := true
			for _, arg := range call.Args {
				cst, isConst := ConstOf(arg)
				if !isConst {
					allConst = false
					break
				}
				args = append(args, cst)
			}
			if !allConst {
				continue
			}
			if result, ok := c.eval.EvalConst(call.Func, args); ok {
				block.Insts[idx] = &ConstInst{Dest: *call.Dest, Value: result}
				changed = true
			}
		}
	}
	return changed
}

// TailCallMarking sets IsTail on calls whose result is returned
// directly: a call at the end of a block that flows into a return,
// either immediately or through the phi of a return block.
type TailCallMarking struct{}

func (TailCallMarking) Name() string { return "tail-call-marking" }

func (TailCallMarking) Run(fn *Function) bool {
	changed := false
	for _, block := range fn.Blocks {
		if len(block.Insts) == 0 {
			continue
		}
		call, ok := block.Insts[len(block.Insts)-1].(*CallInst)
		if !ok || call.Dest == nil || call.IsTail {
			continue
		}

		if isTailPosition(fn, block, *call.Dest) {
			call.IsTail = true
			changed = true
		}
	}
	return changed
}

func isTailPosition(fn *Function, block *Block, dest Place) bool {
	switch term := block.Term.(type) {
	case *ReturnTerm:
		p, ok := PlaceOf(term.Value)
		return ok && p == dest

	case *GotoTerm:
		// call; goto L where L is phi + return of the phi, with this
		// block's incoming value being the call result.
		target := fn.FindBlock(term.Label)
		if target == nil || len(target.Insts) != 1 {
			return false
		}
		phi, ok := target.Insts[0].(*PhiInst)
		if !ok {
			return false
		}
		ret, ok := target.Term.(*ReturnTerm)
		if !ok {
			return false
		}
		retPlace, ok := PlaceOf(ret.Value)
		if !ok || retPlace != phi.Dest {
			return false
		}
		for _, v := range phi.Values {
			if v.Label == block.Label {
				p, isPlace := PlaceOf(v.Value)
				return isPlace && p == dest
			}
		}
	}
	return false
}
