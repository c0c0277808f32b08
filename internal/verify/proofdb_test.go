package verify

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmb/internal/cir"
	"bmb/internal/smt"
)

func openTestDB(t *testing.T) *ProofDatabase {
	t.Helper()
	db, err := OpenProofDatabase(filepath.Join(t.TempDir(), "proofs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func dbFn(name string) *cir.Function {
	return &cir.Function{
		Name:    name,
		Params:  []cir.Param{{Name: "x", Ty: cir.IntType{Bits: 64, Signed: true}}},
		RetTy:   cir.IntType{Bits: 64, Signed: true},
		RetName: "__ret__",
		Preconditions: []cir.NamedProposition{{
			Name: "pre",
			Prop: &cir.Compare{Op: cir.Ge, Left: &cir.VarRef{Name: "x"}, Right: &cir.IntLit{Value: 0}},
		}},
	}
}

func TestProofDatabaseRoundTrip(t *testing.T) {
	db := openTestDB(t)
	fn := dbFn("f")

	_, ok := db.Lookup(fn)
	assert.False(t, ok)

	report := NewFunctionReport("f")
	report.Preconditions = []Obligation{{Name: "pre", Result: smt.Verified()}}
	facts := CollectProvenFacts(fn, report)
	require.Len(t, facts, 1)
	db.Record(fn, report, facts)

	verified, ok := db.Lookup(fn)
	assert.True(t, ok)
	assert.True(t, verified)

	stored, err := db.Facts(IdentityOf(fn))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, EntryIndex, stored[0].Point.Index)
	assert.Equal(t, "x >= 0", stored[0].Proposition)
}

func TestChangedHashMisses(t *testing.T) {
	db := openTestDB(t)
	fn := dbFn("f")
	db.Record(fn, NewFunctionReport("f"), nil)

	// A contract change gives a new structural hash and no reuse.
	changed := dbFn("f")
	changed.Preconditions[0].Prop = &cir.Compare{
		Op: cir.Ge, Left: &cir.VarRef{Name: "x"}, Right: &cir.IntLit{Value: 1},
	}
	_, ok := db.Lookup(changed)
	assert.False(t, ok)
}

func TestRecordIsAppendOnly(t *testing.T) {
	db := openTestDB(t)
	fn := dbFn("f")

	verified := NewFunctionReport("f")
	verified.Preconditions = []Obligation{{Name: "pre", Result: smt.Verified()}}
	db.Record(fn, verified, nil)

	failed := NewFunctionReport("f")
	failed.Preconditions = []Obligation{{Name: "pre", Result: smt.Failed(&smt.Counterexample{})}}
	db.Record(fn, failed, nil)

	// The first outcome for an identity wins; later writes are ignored.
	v, ok := db.Lookup(fn)
	assert.True(t, ok)
	assert.True(t, v)
}

func TestSessionIsStamped(t *testing.T) {
	db := openTestDB(t)
	assert.NotEmpty(t, db.Session())
}
