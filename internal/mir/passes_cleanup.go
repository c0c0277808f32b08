package mir

// Cleanup passes: dead-code elimination, branch simplification, and
// copy propagation.

// DeadCodeElimination removes instructions whose destinations are not
// transitively live and blocks no path can reach, including the
// synthetic blocks break and continue leave behind.
type DeadCodeElimination struct{}

func (DeadCodeElimination) Name() string { return "dead-code-elimination" }

func (DeadCodeElimination) Run(fn *Function) bool {
	changed := removeUnreachableBlocks(fn)
	if removeDeadInstructions(fn) {
		changed = true
	}
	return changed
}

func removeUnreachableBlocks(fn *Function) bool {
	reachable := reachableBlocks(fn)
	kept := fn.Blocks[:0]
	changed := false
	for _, block := range fn.Blocks {
		if reachable[block.Label] {
			kept = append(kept, block)
		} else {
			changed = true
		}
	}
	fn.Blocks = kept

	if changed {
		// Phi operands from removed predecessors drop with them.
		prunePhis(fn)
	}
	return changed
}

// prunePhis drops phi operands whose predecessor edge no longer
// exists and degrades single-operand phis to copies.
func prunePhis(fn *Function) {
	preds := Predecessors(fn)
	for _, block := range fn.Blocks {
		for idx, inst := range block.Insts {
			phi, ok := inst.(*PhiInst)
			if !ok {
				continue
			}
			isPred := make(map[string]bool, len(preds[block.Label]))
			for _, p := range preds[block.Label] {
				isPred[p] = true
			}
			kept := phi.Values[:0]
			for _, v := range phi.Values {
				if isPred[v.Label] {
					kept = append(kept, v)
				}
			}
			phi.Values = kept
			if len(phi.Values) == 1 {
				block.Insts[idx] = replacement(phi.Dest, phi.Values[0].Value)
			}
		}
	}
}

func removeDeadInstructions(fn *Function) bool {
	// Transitive liveness: a place is live if a side-effecting
	// instruction or terminator reads it, or if it feeds a live
	// definition.
	live := make(map[string]bool)
	markOp := func(op Operand) {
		if p, ok := op.(Place); ok {
			live[p.Name] = true
		}
	}

	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if HasSideEffects(inst) {
				for _, op := range InstOperands(inst) {
					markOp(op)
				}
			}
		}
		for _, op := range TermOperands(block.Term) {
			markOp(op)
		}
	}

	for changedLiveness := true; changedLiveness; {
		changedLiveness = false
		for _, block := range fn.Blocks {
			for _, inst := range block.Insts {
				dest, hasDest := InstDest(inst)
				if !hasDest || !live[dest.Name] {
					continue
				}
				for _, op := range InstOperands(inst) {
					if p, ok := op.(Place); ok && !live[p.Name] {
						live[p.Name] = true
						changedLiveness = true
					}
				}
			}
		}
	}

	changed := false
	for _, block := range fn.Blocks {
		kept := block.Insts[:0]
		for _, inst := range block.Insts {
			dest, hasDest := InstDest(inst)
			if HasSideEffects(inst) || !hasDest || live[dest.Name] {
				kept = append(kept, inst)
			} else {
				changed = true
			}
		}
		block.Insts = kept
	}
	return changed
}

// SimplifyBranches collapses branches and switches over constants and
// keeps phi nodes consistent with the surviving edges.
type SimplifyBranches struct{}

func (SimplifyBranches) Name() string { return "simplify-branches" }

func (SimplifyBranches) Run(fn *Function) bool {
	changed := false
	for _, block := range fn.Blocks {
		switch term := block.Term.(type) {
		case *BranchTerm:
			if c, ok := ConstOf(term.Cond); ok && c.Kind == ConstBool {
				target := term.Else
				if c.Bool {
					target = term.Then
				}
				block.Term = &GotoTerm{Label: target}
				changed = true
			}
		case *SwitchTerm:
			if c, ok := ConstOf(term.Disc); ok && c.Kind == ConstInt {
				target := term.Default
				for _, sc := range term.Cases {
					if sc.Value == c.Int {
						target = sc.Label
						break
					}
				}
				block.Term = &GotoTerm{Label: target}
				changed = true
			}
		}
	}
	if changed {
		prunePhis(fn)
	}
	return changed
}

// CopyPropagation folds x = y; use(x) into use(y) for single-
// assignment temporaries. Propagation never crosses a phi.
type CopyPropagation struct{}

func (CopyPropagation) Name() string { return "copy-propagation" }

func (CopyPropagation) Run(fn *Function) bool {
	defCounts := make(map[string]int)
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if dest, ok := InstDest(inst); ok {
				defCounts[dest.Name]++
			}
		}
	}
	params := paramSet(fn)
	singleDef := func(name string) bool {
		if _, isParam := params[name]; isParam {
			return true
		}
		return defCounts[name] == 1
	}

	// forward maps a single-assignment copy or constant destination
	// to the operand it stands for.
	forward := make(map[string]Operand)
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			switch i := inst.(type) {
			case *CopyInst:
				if singleDef(i.Dest.Name) && singleDef(i.Src.Name) {
					forward[i.Dest.Name] = resolveForward(forward, i.Src)
				}
			case *ConstInst:
				if singleDef(i.Dest.Name) {
					forward[i.Dest.Name] = i.Value
				}
			}
		}
	}
	if len(forward) == 0 {
		return false
	}

	changed := false
	rewrite := func(op Operand) Operand {
		if p, ok := op.(Place); ok {
			if repl, found := forward[p.Name]; found && repl != op {
				changed = true
				return repl
			}
		}
		return op
	}
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			ReplaceOperands(inst, rewrite)
		}
		ReplaceTermOperands(block.Term, rewrite)
	}
	return changed
}

func resolveForward(forward map[string]Operand, op Operand) Operand {
	for {
		p, ok := op.(Place)
		if !ok {
			return op
		}
		next, found := forward[p.Name]
		if !found || next == op {
			return op
		}
		op = next
	}
}

func paramSet(fn *Function) map[string]struct{} {
	out := make(map[string]struct{}, len(fn.Params))
	for _, p := range fn.Params {
		out[p.Name] = struct{}{}
	}
	return out
}
