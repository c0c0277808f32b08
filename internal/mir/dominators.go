package mir

// Dominator computation over block labels, iterative dataflow form.
// The proof-guided passes re-derive this on every run so fact scopes
// always match the current CFG.

// Predecessors maps each block label to the labels that branch to it.
func Predecessors(fn *Function) map[string][]string {
	preds := make(map[string][]string, len(fn.Blocks))
	for _, block := range fn.Blocks {
		if _, ok := preds[block.Label]; !ok {
			preds[block.Label] = nil
		}
		for _, succ := range Successors(block.Term) {
			preds[succ] = append(preds[succ], block.Label)
		}
	}
	return preds
}

// Dominators computes the dominator sets of every reachable block.
// The entry block dominates itself; unreachable blocks get no entry.
func Dominators(fn *Function) map[string]map[string]bool {
	if len(fn.Blocks) == 0 {
		return nil
	}
	entry := fn.Blocks[0].Label
	preds := Predecessors(fn)

	reachable := reachableBlocks(fn)
	all := make(map[string]bool)
	for label := range reachable {
		all[label] = true
	}

	dom := make(map[string]map[string]bool, len(all))
	dom[entry] = map[string]bool{entry: true}
	for label := range all {
		if label == entry {
			continue
		}
		full := make(map[string]bool, len(all))
		for l := range all {
			full[l] = true
		}
		dom[label] = full
	}

	for changed := true; changed; {
		changed = false
		for _, block := range fn.Blocks {
			label := block.Label
			if label == entry || !all[label] {
				continue
			}

			var meet map[string]bool
			for _, pred := range preds[label] {
				if !all[pred] {
					continue
				}
				if meet == nil {
					meet = copySet(dom[pred])
					continue
				}
				for l := range meet {
					if !dom[pred][l] {
						delete(meet, l)
					}
				}
			}
			if meet == nil {
				meet = make(map[string]bool)
			}
			meet[label] = true

			if !sameSet(meet, dom[label]) {
				dom[label] = meet
				changed = true
			}
		}
	}
	return dom
}

func reachableBlocks(fn *Function) map[string]bool {
	if len(fn.Blocks) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	work := []string{fn.Blocks[0].Label}
	for len(work) > 0 {
		label := work[len(work)-1]
		work = work[:len(work)-1]
		if seen[label] {
			continue
		}
		seen[label] = true
		if block := fn.FindBlock(label); block != nil {
			work = append(work, Successors(block.Term)...)
		}
	}
	return seen
}

func copySet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
