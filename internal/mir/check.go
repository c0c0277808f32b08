package mir

import "fmt"

// CheckFunction validates the MIR invariants the emitter relies on:
//
//  1. every operand is typable from parameters, locals, or itself;
//  2. every block ends with exactly one terminator and terminators
//     reference existing labels;
//  3. every phi's predecessor set matches the incoming CFG edges;
//  4. switch cases are distinct and the default is present.
//
// Optimizer passes preserve these; a violation is a compiler bug, so
// the pipeline's self-check mode runs this after every pass.
func CheckFunction(fn *Function) error {
	if len(fn.Blocks) == 0 {
		return fmt.Errorf("%s: function has no blocks", fn.Name)
	}

	labels := make(map[string]bool, len(fn.Blocks))
	for _, block := range fn.Blocks {
		if labels[block.Label] {
			return fmt.Errorf("%s: duplicate block label %q", fn.Name, block.Label)
		}
		labels[block.Label] = true
	}

	known := make(map[string]bool, len(fn.Params)+len(fn.Locals))
	for _, p := range fn.Params {
		known[p.Name] = true
	}
	for _, l := range fn.Locals {
		known[l.Name] = true
	}
	// Contract self-reference bindings are implicitly in scope.
	known["__ret__"] = true
	known["__it__"] = true
	if fn.RetName != "" {
		known[fn.RetName] = true
	}
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if dest, ok := InstDest(inst); ok {
				known[dest.Name] = true
			}
			if ch, ok := inst.(*ChannelNewInst); ok {
				known[ch.SenderDest.Name] = true
				known[ch.ReceiverDest.Name] = true
			}
		}
	}

	preds := Predecessors(fn)
	reachable := reachableBlocks(fn)

	for _, block := range fn.Blocks {
		if block.Term == nil {
			return fmt.Errorf("%s/%s: block has no terminator", fn.Name, block.Label)
		}
		for _, succ := range Successors(block.Term) {
			if !labels[succ] {
				return fmt.Errorf("%s/%s: terminator references unknown label %q", fn.Name, block.Label, succ)
			}
		}

		if !reachable[block.Label] {
			continue
		}

		for idx, inst := range block.Insts {
			for _, op := range InstOperands(inst) {
				if p, ok := op.(Place); ok && !known[p.Name] {
					return fmt.Errorf("%s/%s#%d: operand %s has no definition", fn.Name, block.Label, idx, p.Name)
				}
			}

			if phi, ok := inst.(*PhiInst); ok {
				if err := checkPhi(fn, block, phi, preds[block.Label]); err != nil {
					return err
				}
			}
		}
		for _, op := range TermOperands(block.Term) {
			if p, ok := op.(Place); ok && !known[p.Name] {
				return fmt.Errorf("%s/%s: terminator operand %s has no definition", fn.Name, block.Label, p.Name)
			}
		}

		if sw, ok := block.Term.(*SwitchTerm); ok {
			seen := make(map[int64]bool, len(sw.Cases))
			for _, c := range sw.Cases {
				if seen[c.Value] {
					return fmt.Errorf("%s/%s: duplicate switch case %d", fn.Name, block.Label, c.Value)
				}
				seen[c.Value] = true
			}
			if sw.Default == "" {
				return fmt.Errorf("%s/%s: switch has no default", fn.Name, block.Label)
			}
		}
	}
	return nil
}

func checkPhi(fn *Function, block *Block, phi *PhiInst, preds []string) error {
	predSet := make(map[string]int, len(preds))
	for _, p := range preds {
		predSet[p]++
	}
	if len(predSet) < 2 {
		return fmt.Errorf("%s/%s: phi %s in block with %d predecessor(s)", fn.Name, block.Label, phi.Dest, len(predSet))
	}

	seen := make(map[string]bool, len(phi.Values))
	for _, v := range phi.Values {
		if predSet[v.Label] == 0 {
			return fmt.Errorf("%s/%s: phi %s names non-predecessor %q", fn.Name, block.Label, phi.Dest, v.Label)
		}
		if seen[v.Label] {
			return fmt.Errorf("%s/%s: phi %s repeats predecessor %q", fn.Name, block.Label, phi.Dest, v.Label)
		}
		seen[v.Label] = true
	}
	for p := range predSet {
		if !seen[p] {
			return fmt.Errorf("%s/%s: phi %s misses predecessor %q", fn.Name, block.Label, phi.Dest, p)
		}
	}
	return nil
}

// CheckProgram validates every function.
func CheckProgram(prog *Program) error {
	for _, fn := range prog.Functions {
		if err := CheckFunction(fn); err != nil {
			return err
		}
	}
	return nil
}
