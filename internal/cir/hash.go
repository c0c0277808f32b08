package cir

import (
	"fmt"
	"hash/fnv"
)

// StructuralHash fingerprints a CIR function for proof-database
// identity. Two functions with the same hash have the same contracts,
// signature, and body term; spans and source formatting do not
// participate.
func StructuralHash(fn *Function) uint64 {
	h := fnv.New64a()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	write(fn.Name)
	for _, tp := range fn.TypeParams {
		write(tp)
	}
	for _, p := range fn.Params {
		write(p.Name)
		write(p.Ty.String())
		for _, c := range p.Constraints {
			write(c.String())
		}
	}
	write(fn.RetTy.String())
	write(fn.RetName)
	for _, pre := range fn.Preconditions {
		write(pre.Name)
		if pre.Prop != nil {
			write(pre.Prop.String())
		}
		write(pre.Err)
	}
	for _, post := range fn.Postconditions {
		write(post.Name)
		if post.Prop != nil {
			write(post.Prop.String())
		}
		write(post.Err)
	}
	for _, inv := range fn.LoopInvariants {
		write(fmt.Sprintf("loop%d", inv.LoopID))
		write(inv.Invariant.String())
	}
	write(fn.Effects.String())
	if fn.Body != nil {
		write(fn.Body.String())
	}
	if fn.Decreases != nil {
		write(fn.Decreases.String())
	}

	return h.Sum64()
}

// HashProposition fingerprints a single proposition; the verifier
// uses it for duplicate-contract detection.
func HashProposition(p Proposition) uint64 {
	h := fnv.New64a()
	h.Write([]byte(p.String()))
	return h.Sum64()
}
