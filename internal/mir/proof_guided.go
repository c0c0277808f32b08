package mir

import (
	"math"

	"bmb/internal/cir"
)

// Proof-guided passes consume the function's contract facts and the
// verifier's proven-fact annotations to erase runtime checks:
//
//   - BoundsCheckElimination removes the implicit bounds check on an
//     index proven inside [0, len).
//   - NullCheckElimination removes null checks on proven non-null
//     pointers.
//   - DivisionCheckElimination removes the zero-divisor guard.
//   - ProofUnreachableElimination turns blocks with contradictory
//     incoming facts into Unreachable.
//
// A fact is in scope at an instruction iff its program point
// dominates the instruction. Passes only consume facts; the scope is
// recomputed from the current CFG on every run.

// factSet is the set of facts in scope at one block.
type factSet struct {
	cmps     []VarCmp
	varVars  []VarVarCmp
	inBounds map[string]map[string]bool
	nonNull  map[string]bool
}

func newFactSet() *factSet {
	return &factSet{
		inBounds: make(map[string]map[string]bool),
		nonNull:  make(map[string]bool),
	}
}

func (fs *factSet) clone() *factSet {
	out := newFactSet()
	out.cmps = append(out.cmps, fs.cmps...)
	out.varVars = append(out.varVars, fs.varVars...)
	for idx, arrs := range fs.inBounds {
		out.inBounds[idx] = make(map[string]bool, len(arrs))
		for arr := range arrs {
			out.inBounds[idx][arr] = true
		}
	}
	for v := range fs.nonNull {
		out.nonNull[v] = true
	}
	return out
}

func (fs *factSet) addFact(fact ContractFact) {
	switch f := fact.(type) {
	case VarCmp:
		fs.cmps = append(fs.cmps, f)
	case VarVarCmp:
		fs.varVars = append(fs.varVars, f)
	}
}

// addProp projects a proven proposition onto the fact language;
// constructs outside the fragment are ignored.
func (fs *factSet) addProp(p cir.Proposition) {
	switch prop := p.(type) {
	case *cir.And:
		fs.addProp(prop.Left)
		fs.addProp(prop.Right)
	case *cir.Compare:
		lhsVar, lhsIsVar := prop.Left.(*cir.VarRef)
		rhsVar, rhsIsVar := prop.Right.(*cir.VarRef)
		lhsInt, lhsIsInt := prop.Left.(*cir.IntLit)
		rhsInt, rhsIsInt := prop.Right.(*cir.IntLit)
		switch {
		case lhsIsVar && rhsIsInt:
			fs.cmps = append(fs.cmps, VarCmp{Var: lhsVar.Name, Op: prop.Op, Value: rhsInt.Value})
		case lhsIsInt && rhsIsVar:
			fs.cmps = append(fs.cmps, VarCmp{Var: rhsVar.Name, Op: prop.Op.Flip(), Value: lhsInt.Value})
		case lhsIsVar && rhsIsVar:
			fs.varVars = append(fs.varVars, VarVarCmp{Lhs: lhsVar.Name, Op: prop.Op, Rhs: rhsVar.Name})
		case lhsIsVar && !rhsIsVar:
			// i < len(a) gives an in-bounds upper half; pair it with a
			// lower bound elsewhere in the set.
			if lenExpr, ok := prop.Right.(*cir.LenExpr); ok && prop.Op == cir.Lt {
				if arr, ok := lenExpr.Expr.(*cir.VarRef); ok {
					fs.noteUpperLen(lhsVar.Name, arr.Name)
				}
			}
		}
	case *cir.InBounds:
		idx, idxOk := prop.Index.(*cir.VarRef)
		arr, arrOk := prop.Array.(*cir.VarRef)
		if idxOk && arrOk {
			if fs.inBounds[idx.Name] == nil {
				fs.inBounds[idx.Name] = make(map[string]bool)
			}
			fs.inBounds[idx.Name][arr.Name] = true
		}
	case *cir.NonNull:
		if v, ok := prop.Expr.(*cir.VarRef); ok {
			fs.nonNull[v.Name] = true
		}
	}
}

// noteUpperLen records i < len(arr); combined with a proven i >= 0 it
// upgrades to a full in-bounds fact.
func (fs *factSet) noteUpperLen(index, array string) {
	for _, c := range fs.cmps {
		if c.Var == index && impliesNonNegative(c) {
			if fs.inBounds[index] == nil {
				fs.inBounds[index] = make(map[string]bool)
			}
			fs.inBounds[index][array] = true
			return
		}
	}
	// Remember as a pending upper bound keyed through varVars.
	fs.varVars = append(fs.varVars, VarVarCmp{Lhs: index, Op: cir.Lt, Rhs: "len:" + array})
}

func impliesNonNegative(c VarCmp) bool {
	switch c.Op {
	case cir.Ge:
		return c.Value >= 0
	case cir.Gt:
		return c.Value >= -1
	case cir.Eq:
		return c.Value >= 0
	}
	return false
}

func impliesNonZero(c VarCmp) bool {
	switch c.Op {
	case cir.Ne:
		return c.Value == 0
	case cir.Gt:
		return c.Value >= 0
	case cir.Ge:
		return c.Value >= 1
	case cir.Lt:
		return c.Value <= 0
	case cir.Le:
		return c.Value <= -1
	case cir.Eq:
		return c.Value != 0
	}
	return false
}

// factScope computes the facts in scope per block: the function's
// contract facts and entry-point proven facts everywhere, plus
// comparisons carried by dominating branch edges over stable places.
func factScope(fn *Function) map[string]*factSet {
	base := newFactSet()
	for _, fact := range fn.Preconditions {
		base.addFact(fact)
	}
	for _, prop := range fn.Proven[EntryIndex] {
		base.addProp(prop)
	}

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
	stable := func(name string) bool {
		if _, isParam := params[name]; isParam {
			return true
		}
		return defCounts[name] == 1
	}

	// Comparison definitions eligible for edge facts.
	condDefs := make(map[string]*BinOpInst)
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if bin, ok := inst.(*BinOpInst); ok && bin.Op.IsComparison() {
				condDefs[bin.Dest.Name] = bin
			}
		}
	}

	scope := make(map[string]*factSet, len(fn.Blocks))
	for _, block := range fn.Blocks {
		fs := base.clone()
		for domLabel := range dom[block.Label] {
			if domLabel == block.Label {
				continue
			}
			domBlock := fn.FindBlock(domLabel)
			if domBlock == nil {
				continue
			}
			branch, ok := domBlock.Term.(*BranchTerm)
			if !ok || branch.Then == branch.Else {
				continue
			}
			condPlace, ok := PlaceOf(branch.Cond)
			if !ok {
				continue
			}
			def, ok := condDefs[condPlace.Name]
			if !ok {
				continue
			}
			cmpOp, ok := def.Op.CmpOf()
			if !ok {
				continue
			}

			onThen := dom[block.Label][branch.Then] && !dom[block.Label][branch.Else]
			onElse := dom[block.Label][branch.Else] && !dom[block.Label][branch.Then]
			if !onThen && !onElse {
				continue
			}
			if onElse {
				cmpOp = cmpOp.Negate()
			}
			addEdgeFact(fs, def, cmpOp, stable)
		}
		scope[block.Label] = fs
	}
	return scope
}

func addEdgeFact(fs *factSet, def *BinOpInst, op cir.CmpOp, stable func(string) bool) {
	lhsPlace, lhsIsPlace := PlaceOf(def.Lhs)
	rhsPlace, rhsIsPlace := PlaceOf(def.Rhs)
	lhsConst, lhsIsConst := ConstOf(def.Lhs)
	rhsConst, rhsIsConst := ConstOf(def.Rhs)

	switch {
	case lhsIsPlace && rhsIsConst && rhsConst.Kind == ConstInt && stable(lhsPlace.Name):
		fs.cmps = append(fs.cmps, VarCmp{Var: lhsPlace.Name, Op: op, Value: rhsConst.Int})
	case lhsIsConst && rhsIsPlace && lhsConst.Kind == ConstInt && stable(rhsPlace.Name):
		fs.cmps = append(fs.cmps, VarCmp{Var: rhsPlace.Name, Op: op.Flip(), Value: lhsConst.Int})
	case lhsIsPlace && rhsIsPlace && stable(lhsPlace.Name) && stable(rhsPlace.Name):
		fs.varVars = append(fs.varVars, VarVarCmp{Lhs: lhsPlace.Name, Op: op, Rhs: rhsPlace.Name})
	}
}

// localTypes builds the name-to-type table of a function.
func localTypes(fn *Function) map[string]Type {
	out := make(map[string]Type, len(fn.Params)+len(fn.Locals))
	for _, p := range fn.Params {
		out[p.Name] = p.Ty
	}
	for _, l := range fn.Locals {
		out[l.Name] = l.Ty
	}
	return out
}

// BoundsCheckElimination marks index operations whose index is proven
// inside [0, len(array)).
type BoundsCheckElimination struct{}

func (BoundsCheckElimination) Name() string { return "bounds-check-elimination" }

func (BoundsCheckElimination) Run(fn *Function) bool {
	changed := false
	scope := factScope(fn)
	types := localTypes(fn)

	arrayLen := func(array Place) int {
		if arr, ok := types[array.Name].(Array); ok && arr.Size >= 0 {
			return arr.Size
		}
		return -1
	}

	for _, block := range fn.Blocks {
		facts := scope[block.Label]
		for _, inst := range block.Insts {
			switch i := inst.(type) {
			case *IndexLoadInst:
				if !i.NoBoundsCheck && indexProvenInBounds(facts, i.Index, i.Array, arrayLen(i.Array)) {
					i.NoBoundsCheck = true
					changed = true
				}
			case *IndexStoreInst:
				if !i.NoBoundsCheck && indexProvenInBounds(facts, i.Index, i.Array, arrayLen(i.Array)) {
					i.NoBoundsCheck = true
					changed = true
				}
			}
		}
	}
	return changed
}

func indexProvenInBounds(facts *factSet, index Operand, array Place, length int) bool {
	if c, ok := ConstOf(index); ok && c.Kind == ConstInt {
		return length >= 0 && c.Int >= 0 && c.Int < int64(length)
	}
	idx, ok := PlaceOf(index)
	if !ok {
		return false
	}

	if facts.inBounds[idx.Name][array.Name] {
		return true
	}

	lower := false
	upper := false
	for _, c := range facts.cmps {
		if c.Var != idx.Name {
			continue
		}
		if impliesNonNegative(c) {
			lower = true
		}
		if length >= 0 {
			switch c.Op {
			case cir.Lt:
				if c.Value <= int64(length) {
					upper = true
				}
			case cir.Le:
				if c.Value <= int64(length)-1 {
					upper = true
				}
			case cir.Eq:
				if c.Value < int64(length) {
					upper = true
				}
			}
		}
	}
	if !upper {
		for _, vv := range facts.varVars {
			if vv.Lhs == idx.Name && vv.Op == cir.Lt && vv.Rhs == "len:"+array.Name {
				upper = true
			}
		}
	}
	return lower && upper
}

// NullCheckElimination marks pointer operations whose pointer is
// proven non-null.
type NullCheckElimination struct{}

func (NullCheckElimination) Name() string { return "null-check-elimination" }

func (NullCheckElimination) Run(fn *Function) bool {
	changed := false
	scope := factScope(fn)

	provenNonNull := func(facts *factSet, ptr Operand) bool {
		if c, ok := ConstOf(ptr); ok {
			return c.Kind == ConstInt && c.Int != 0
		}
		p, ok := PlaceOf(ptr)
		if !ok {
			return false
		}
		if facts.nonNull[p.Name] {
			return true
		}
		for _, c := range facts.cmps {
			if c.Var == p.Name && impliesNonZero(c) {
				return true
			}
		}
		return false
	}

	for _, block := range fn.Blocks {
		facts := scope[block.Label]
		for _, inst := range block.Insts {
			switch i := inst.(type) {
			case *PtrLoadInst:
				if !i.NoNullCheck && provenNonNull(facts, i.Ptr) {
					i.NoNullCheck = true
					changed = true
				}
			case *PtrStoreInst:
				if !i.NoNullCheck && provenNonNull(facts, i.Ptr) {
					i.NoNullCheck = true
					changed = true
				}
			case *FieldAccessInst:
				if !i.NoNullCheck && provenNonNull(facts, i.Base) {
					i.NoNullCheck = true
					changed = true
				}
			}
		}
	}
	return changed
}

// DivisionCheckElimination marks divisions whose divisor is proven
// nonzero.
type DivisionCheckElimination struct{}

func (DivisionCheckElimination) Name() string { return "division-check-elimination" }

func (DivisionCheckElimination) Run(fn *Function) bool {
	changed := false
	scope := factScope(fn)

	for _, block := range fn.Blocks {
		facts := scope[block.Label]
		for _, inst := range block.Insts {
			bin, ok := inst.(*BinOpInst)
			if !ok || !bin.Op.IsDivision() || bin.NoZeroCheck {
				continue
			}
			if divisorProvenNonZero(facts, bin.Rhs) {
				bin.NoZeroCheck = true
				changed = true
			}
		}
	}
	return changed
}

func divisorProvenNonZero(facts *factSet, divisor Operand) bool {
	if c, ok := ConstOf(divisor); ok {
		switch c.Kind {
		case ConstInt:
			return c.Int != 0
		case ConstFloat:
			return c.Float != 0
		}
		return false
	}
	p, ok := PlaceOf(divisor)
	if !ok {
		return false
	}
	for _, c := range facts.cmps {
		if c.Var == p.Name && impliesNonZero(c) {
			return true
		}
	}
	return false
}

// ProofUnreachableElimination replaces blocks whose incoming fact set
// is contradictory with Unreachable, feeding branch simplification
// and dead-code elimination.
type ProofUnreachableElimination struct{}

func (ProofUnreachableElimination) Name() string { return "proof-unreachable-elimination" }

func (ProofUnreachableElimination) Run(fn *Function) bool {
	changed := false
	scope := factScope(fn)

	for idx, block := range fn.Blocks {
		if idx == 0 {
			continue
		}
		if _, already := block.Term.(*UnreachableTerm); already && len(block.Insts) == 0 {
			continue
		}
		if contradictory(scope[block.Label]) {
			block.Insts = nil
			block.Term = &UnreachableTerm{}
			changed = true
		}
	}
	if changed {
		prunePhis(fn)
	}
	return changed
}

// contradictory detects an unsatisfiable fact set by interval
// reasoning per variable plus antisymmetry over variable pairs.
func contradictory(facts *factSet) bool {
	type bound struct {
		lo, hi int64
		nes    []int64
	}
	bounds := make(map[string]*bound)
	get := func(name string) *bound {
		b, ok := bounds[name]
		if !ok {
			b = &bound{lo: math.MinInt64, hi: math.MaxInt64}
			bounds[name] = b
		}
		return b
	}

	for _, c := range facts.cmps {
		b := get(c.Var)
		switch c.Op {
		case cir.Lt:
			if c.Value == math.MinInt64 {
				return true
			}
			if c.Value-1 < b.hi {
				b.hi = c.Value - 1
			}
		case cir.Le:
			if c.Value < b.hi {
				b.hi = c.Value
			}
		case cir.Gt:
			if c.Value == math.MaxInt64 {
				return true
			}
			if c.Value+1 > b.lo {
				b.lo = c.Value + 1
			}
		case cir.Ge:
			if c.Value > b.lo {
				b.lo = c.Value
			}
		case cir.Eq:
			if c.Value > b.lo {
				b.lo = c.Value
			}
			if c.Value < b.hi {
				b.hi = c.Value
			}
		case cir.Ne:
			b.nes = append(b.nes, c.Value)
		}
	}

	for _, b := range bounds {
		if b.lo > b.hi {
			return true
		}
		if b.lo == b.hi {
			for _, ne := range b.nes {
				if ne == b.lo {
					return true
				}
			}
		}
	}

	// Pairwise ordering: each relation permits a subset of signs of
	// (a - b); an empty intersection is a contradiction.
	const (
		signNeg = 1 << iota
		signZero
		signPos
	)
	allowedSigns := func(op cir.CmpOp) int {
		switch op {
		case cir.Lt:
			return signNeg
		case cir.Le:
			return signNeg | signZero
		case cir.Gt:
			return signPos
		case cir.Ge:
			return signZero | signPos
		case cir.Eq:
			return signZero
		}
		return signNeg | signPos
	}

	pair := make(map[[2]string]int)
	for _, vv := range facts.varVars {
		op := vv.Op
		key := [2]string{vv.Lhs, vv.Rhs}
		if vv.Rhs < vv.Lhs {
			key = [2]string{vv.Rhs, vv.Lhs}
			op = op.Flip()
		}
		allowed := allowedSigns(op)
		if prev, ok := pair[key]; ok {
			allowed &= prev
		}
		pair[key] = allowed
		if allowed == 0 {
			return true
		}
	}
	return false
}
