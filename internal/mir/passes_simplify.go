package mir

import "math"

// AlgebraicSimplification rewrites identity and annihilator patterns
// over plain integer, float, and boolean operators, plus double
// negation. Wrapping, checked, and saturating operators are left
// alone; their overflow semantics must survive.
type AlgebraicSimplification struct{}

func (AlgebraicSimplification) Name() string { return "algebraic-simplification" }

func (AlgebraicSimplification) Run(fn *Function) bool {
	changed := false
	for _, block := range fn.Blocks {
		// unaryDefs tracks unary definitions seen in this block for
		// double-negation elimination.
		unaryDefs := make(map[string]*UnaryOpInst)

		for idx, inst := range block.Insts {
			switch i := inst.(type) {
			case *UnaryOpInst:
				if src, ok := i.Src.(Place); ok {
					if prev, seen := unaryDefs[src.Name]; seen && prev.Op == i.Op && (i.Op == Neg || i.Op == Not || i.Op == BitNot || i.Op == FNeg) {
						block.Insts[idx] = replacement(i.Dest, prev.Src)
						changed = true
						continue
					}
				}
				unaryDefs[i.Dest.Name] = i
			case *BinOpInst:
				if simplified, ok := simplifyBinOp(i); ok {
					block.Insts[idx] = simplified
					changed = true
				}
			}
		}
	}
	return changed
}

func simplifyBinOp(i *BinOpInst) (Inst, bool) {
	lhsConst, lhsIsConst := ConstOf(i.Lhs)
	rhsConst, rhsIsConst := ConstOf(i.Rhs)
	lhsPlace, lhsIsPlace := PlaceOf(i.Lhs)
	rhsPlace, rhsIsPlace := PlaceOf(i.Rhs)
	samePlace := lhsIsPlace && rhsIsPlace && lhsPlace == rhsPlace

	isZero := func(c Constant) bool { return c.Kind == ConstInt && c.Int == 0 }
	isOne := func(c Constant) bool { return c.Kind == ConstInt && c.Int == 1 }
	isFZero := func(c Constant) bool { return c.Kind == ConstFloat && c.Float == 0 }
	isFOne := func(c Constant) bool { return c.Kind == ConstFloat && c.Float == 1 }

	switch i.Op {
	case Add:
		if rhsIsConst && isZero(rhsConst) {
			return replacement(i.Dest, i.Lhs), true
		}
		if lhsIsConst && isZero(lhsConst) {
			return replacement(i.Dest, i.Rhs), true
		}
	case Sub:
		if rhsIsConst && isZero(rhsConst) {
			return replacement(i.Dest, i.Lhs), true
		}
		if samePlace {
			return &ConstInst{Dest: i.Dest, Value: IntConst(0)}, true
		}
	case Mul:
		if rhsIsConst && isOne(rhsConst) {
			return replacement(i.Dest, i.Lhs), true
		}
		if lhsIsConst && isOne(lhsConst) {
			return replacement(i.Dest, i.Rhs), true
		}
		if (rhsIsConst && isZero(rhsConst)) || (lhsIsConst && isZero(lhsConst)) {
			return &ConstInst{Dest: i.Dest, Value: IntConst(0)}, true
		}
	case Div:
		if rhsIsConst && isOne(rhsConst) {
			return replacement(i.Dest, i.Lhs), true
		}
	case FAdd:
		// x + 0.0 only; 0.0 + x changes the sign of a negative zero.
		if rhsIsConst && isFZero(rhsConst) {
			return replacement(i.Dest, i.Lhs), true
		}
	case FMul:
		if rhsIsConst && isFOne(rhsConst) {
			return replacement(i.Dest, i.Lhs), true
		}
		if lhsIsConst && isFOne(lhsConst) {
			return replacement(i.Dest, i.Rhs), true
		}
	case BitAnd, BitOr:
		if samePlace {
			return replacement(i.Dest, i.Lhs), true
		}
	case BitXor:
		if samePlace {
			return &ConstInst{Dest: i.Dest, Value: IntConst(0)}, true
		}
	case And:
		if rhsIsConst && rhsConst.Kind == ConstBool {
			if rhsConst.Bool {
				return replacement(i.Dest, i.Lhs), true
			}
			return &ConstInst{Dest: i.Dest, Value: BoolConst(false)}, true
		}
		if lhsIsConst && lhsConst.Kind == ConstBool {
			if lhsConst.Bool {
				return replacement(i.Dest, i.Rhs), true
			}
			return &ConstInst{Dest: i.Dest, Value: BoolConst(false)}, true
		}
	case Or:
		if rhsIsConst && rhsConst.Kind == ConstBool {
			if !rhsConst.Bool {
				return replacement(i.Dest, i.Lhs), true
			}
			return &ConstInst{Dest: i.Dest, Value: BoolConst(true)}, true
		}
		if lhsIsConst && lhsConst.Kind == ConstBool {
			if !lhsConst.Bool {
				return replacement(i.Dest, i.Rhs), true
			}
			return &ConstInst{Dest: i.Dest, Value: BoolConst(true)}, true
		}
	}
	return nil, false
}

// replacement rewrites dest = op into a copy or constant.
func replacement(dest Place, value Operand) Inst {
	switch v := value.(type) {
	case Constant:
		return &ConstInst{Dest: dest, Value: v}
	case Place:
		return &CopyInst{Dest: dest, Src: v}
	}
	return &ConstInst{Dest: dest, Value: UnitConst()}
}

// ConstantFolding evaluates operators whose operands are constants,
// respecting each operator's arithmetic discipline: wrap folds
// modularly, checked skips on overflow, sat clamps, and plain signed
// arithmetic is never folded through an overflow.
type ConstantFolding struct{}

func (ConstantFolding) Name() string { return "constant-folding" }

func (ConstantFolding) Run(fn *Function) bool {
	changed := false
	for _, block := range fn.Blocks {
		for idx, inst := range block.Insts {
			switch i := inst.(type) {
			case *BinOpInst:
				lhs, lhsOk := ConstOf(i.Lhs)
				rhs, rhsOk := ConstOf(i.Rhs)
				if !lhsOk || !rhsOk {
					continue
				}
				if folded, ok := foldBinOp(i.Op, lhs, rhs); ok {
					block.Insts[idx] = &ConstInst{Dest: i.Dest, Value: folded}
					changed = true
				}
			case *UnaryOpInst:
				src, ok := ConstOf(i.Src)
				if !ok {
					continue
				}
				if folded, ok := foldUnaryOp(i.Op, src); ok {
					block.Insts[idx] = &ConstInst{Dest: i.Dest, Value: folded}
					changed = true
				}
			}
		}
	}
	return changed
}

func foldBinOp(op BinOp, lhs, rhs Constant) (Constant, bool) {
	if lhs.Kind == ConstInt && rhs.Kind == ConstInt {
		return foldIntBinOp(op, lhs.Int, rhs.Int)
	}
	if lhs.Kind == ConstFloat && rhs.Kind == ConstFloat {
		return foldFloatBinOp(op, lhs.Float, rhs.Float)
	}
	if lhs.Kind == ConstBool && rhs.Kind == ConstBool {
		switch op {
		case And:
			return BoolConst(lhs.Bool && rhs.Bool), true
		case Or:
			return BoolConst(lhs.Bool || rhs.Bool), true
		case Eq:
			return BoolConst(lhs.Bool == rhs.Bool), true
		case Ne:
			return BoolConst(lhs.Bool != rhs.Bool), true
		}
	}
	return Constant{}, false
}

func foldIntBinOp(op BinOp, a, b int64) (Constant, bool) {
	switch op {
	case Add:
		if sum, ok := addNoOverflow(a, b); ok {
			return IntConst(sum), true
		}
	case Sub:
		if diff, ok := subNoOverflow(a, b); ok {
			return IntConst(diff), true
		}
	case Mul:
		if prod, ok := mulNoOverflow(a, b); ok {
			return IntConst(prod), true
		}
	case Div:
		if b != 0 && !(a == math.MinInt64 && b == -1) {
			return IntConst(a / b), true
		}
	case Mod:
		if b != 0 && !(a == math.MinInt64 && b == -1) {
			return IntConst(a % b), true
		}

	case AddWrap:
		return IntConst(a + b), true
	case SubWrap:
		return IntConst(a - b), true
	case MulWrap:
		return IntConst(a * b), true

	case AddChecked:
		if sum, ok := addNoOverflow(a, b); ok {
			return IntConst(sum), true
		}
	case SubChecked:
		if diff, ok := subNoOverflow(a, b); ok {
			return IntConst(diff), true
		}
	case MulChecked:
		if prod, ok := mulNoOverflow(a, b); ok {
			return IntConst(prod), true
		}

	case AddSat:
		if sum, ok := addNoOverflow(a, b); ok {
			return IntConst(sum), true
		}
		if a > 0 {
			return IntConst(math.MaxInt64), true
		}
		return IntConst(math.MinInt64), true
	case SubSat:
		if diff, ok := subNoOverflow(a, b); ok {
			return IntConst(diff), true
		}
		if a >= 0 {
			return IntConst(math.MaxInt64), true
		}
		return IntConst(math.MinInt64), true
	case MulSat:
		if prod, ok := mulNoOverflow(a, b); ok {
			return IntConst(prod), true
		}
		if (a > 0) == (b > 0) {
			return IntConst(math.MaxInt64), true
		}
		return IntConst(math.MinInt64), true

	case BitAnd:
		return IntConst(a & b), true
	case BitOr:
		return IntConst(a | b), true
	case BitXor:
		return IntConst(a ^ b), true
	case Shl:
		if b >= 0 && b < 64 {
			return IntConst(a << uint(b)), true
		}
	case Shr:
		if b >= 0 && b < 64 {
			return IntConst(a >> uint(b)), true
		}

	case Eq:
		return BoolConst(a == b), true
	case Ne:
		return BoolConst(a != b), true
	case Lt:
		return BoolConst(a < b), true
	case Le:
		return BoolConst(a <= b), true
	case Gt:
		return BoolConst(a > b), true
	case Ge:
		return BoolConst(a >= b), true
	}
	return Constant{}, false
}

func foldFloatBinOp(op BinOp, a, b float64) (Constant, bool) {
	switch op {
	case FAdd:
		return FloatConst(a + b), true
	case FSub:
		return FloatConst(a - b), true
	case FMul:
		return FloatConst(a * b), true
	case FDiv:
		if b != 0 {
			return FloatConst(a / b), true
		}
	case Eq:
		return BoolConst(a == b), true
	case Ne:
		return BoolConst(a != b), true
	case Lt:
		return BoolConst(a < b), true
	case Le:
		return BoolConst(a <= b), true
	case Gt:
		return BoolConst(a > b), true
	case Ge:
		return BoolConst(a >= b), true
	}
	return Constant{}, false
}

func foldUnaryOp(op UnaryOp, src Constant) (Constant, bool) {
	switch op {
	case Neg:
		if src.Kind == ConstInt && src.Int != math.MinInt64 {
			return IntConst(-src.Int), true
		}
	case FNeg:
		if src.Kind == ConstFloat {
			return FloatConst(-src.Float), true
		}
	case Not:
		if src.Kind == ConstBool {
			return BoolConst(!src.Bool), true
		}
	case BitNot:
		if src.Kind == ConstInt {
			return IntConst(^src.Int), true
		}
	}
	return Constant{}, false
}

func addNoOverflow(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func subNoOverflow(a, b int64) (int64, bool) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, false
	}
	return diff, true
}

func mulNoOverflow(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	prod := a * b
	if prod/b != a || (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		return 0, false
	}
	return prod, true
}
