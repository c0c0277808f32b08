package mir

import (
	"bmb/internal/ast"
	"bmb/internal/cir"
)

// Contract fact capture: pre/post expressions are walked for atomic
// comparisons over variables and integer constants. These lightweight
// facts feed the proof-guided passes without the SMT machinery.

// ExtractContractFacts collects facts from a contract expression.
func ExtractContractFacts(expr *ast.Spanned[ast.Expr]) []ContractFact {
	if expr == nil {
		return nil
	}
	var facts []ContractFact
	extractFacts(expr.Node, &facts)
	return facts
}

func extractFacts(e ast.Expr, facts *[]ContractFact) {
	bin, ok := e.(*ast.Binary)
	if !ok {
		return
	}

	// Conjunctions contribute both sides.
	if bin.Op == ast.And {
		extractFacts(bin.Left.Node, facts)
		extractFacts(bin.Right.Node, facts)
		return
	}

	op, isCmp := cmpOpForFact(bin.Op)
	if !isCmp {
		return
	}

	switch lhs := bin.Left.Node.(type) {
	case *ast.Var:
		switch rhs := bin.Right.Node.(type) {
		case *ast.IntLit:
			*facts = append(*facts, VarCmp{Var: lhs.Name, Op: op, Value: rhs.Value})
		case *ast.Var:
			*facts = append(*facts, VarVarCmp{Lhs: lhs.Name, Op: op, Rhs: rhs.Name})
		}
	case *ast.IntLit:
		// constant op var flips the comparison.
		if rhs, ok := bin.Right.Node.(*ast.Var); ok {
			*facts = append(*facts, VarCmp{Var: rhs.Name, Op: op.Flip(), Value: lhs.Value})
		}
	case *ast.RetRef:
		switch rhs := bin.Right.Node.(type) {
		case *ast.IntLit:
			*facts = append(*facts, VarCmp{Var: "__ret__", Op: op, Value: rhs.Value})
		case *ast.Var:
			*facts = append(*facts, VarVarCmp{Lhs: "__ret__", Op: op, Rhs: rhs.Name})
		}
	}
}

func cmpOpForFact(op ast.BinOp) (cir.CmpOp, bool) {
	switch op {
	case ast.Lt:
		return cir.Lt, true
	case ast.Le:
		return cir.Le, true
	case ast.Gt:
		return cir.Gt, true
	case ast.Ge:
		return cir.Ge, true
	case ast.Eq:
		return cir.Eq, true
	case ast.Ne:
		return cir.Ne, true
	}
	return 0, false
}

// AttachProvenFacts installs verifier-certified propositions on a
// function, keyed by instruction index.
func AttachProvenFacts(fn *Function, facts map[int][]cir.Proposition) {
	if fn.Proven == nil {
		fn.Proven = make(map[int][]cir.Proposition)
	}
	for point, props := range facts {
		fn.Proven[point] = append(fn.Proven[point], props...)
	}
}
