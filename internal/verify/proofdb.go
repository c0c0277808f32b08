package verify

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"bmb/internal/cir"
)

// FunctionID is the proof-database identity of a function: its fully
// qualified name plus the structural hash of its CIR. A function
// whose hash is unchanged reuses its previous verification outcome.
type FunctionID struct {
	Name    string
	CirHash uint64
}

// IdentityOf computes the database identity of a CIR function.
func IdentityOf(fn *cir.Function) FunctionID {
	return FunctionID{Name: fn.Name, CirHash: cir.StructuralHash(fn)}
}

// StoredFact is a proven fact as persisted: the proposition is kept
// in its rendered form.
type StoredFact struct {
	Point       Point
	Proposition string
}

// ProofDatabase is the optional cross-run store of verification
// outcomes and proven facts. It is the only shared mutable store in
// the pipeline; all access goes through a single writer lock. Rows
// are append-only within a session.
type ProofDatabase struct {
	mu      sync.Mutex
	db      *sql.DB
	session string
	log     commonlog.Logger
}

const proofSchema = `
CREATE TABLE IF NOT EXISTS proofs (
    name       TEXT    NOT NULL,
    cir_hash   INTEGER NOT NULL,
    verified   INTEGER NOT NULL,
    session    TEXT    NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (name, cir_hash)
);
CREATE TABLE IF NOT EXISTS facts (
    name        TEXT    NOT NULL,
    cir_hash    INTEGER NOT NULL,
    point       INTEGER NOT NULL,
    proposition TEXT    NOT NULL,
    session     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS facts_identity ON facts (name, cir_hash);
`

// OpenProofDatabase opens (creating if needed) the proof database at
// path. The schema is stable across versions.
func OpenProofDatabase(path string) (*ProofDatabase, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening proof database")
	}
	if _, err := db.Exec(proofSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating proof schema")
	}
	return &ProofDatabase{
		db:      db,
		session: uuid.NewString(),
		log:     commonlog.GetLogger("verify.proofdb"),
	}, nil
}

// Close releases the underlying database.
func (p *ProofDatabase) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db.Close()
}

// Session returns the id stamped on rows appended by this handle.
func (p *ProofDatabase) Session() string { return p.session }

// Lookup returns the stored outcome for the function's current
// identity. The second result reports whether an entry exists.
func (p *ProofDatabase) Lookup(fn *cir.Function) (verified bool, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := IdentityOf(fn)
	var v int
	err := p.db.QueryRow(
		`SELECT verified FROM proofs WHERE name = ? AND cir_hash = ?`,
		id.Name, int64(id.CirHash),
	).Scan(&v)
	if err != nil {
		if err != sql.ErrNoRows {
			p.log.Errorf("lookup %s: %v", id.Name, err)
		}
		return false, false
	}
	return v != 0, true
}

// Record appends the function's outcome and its proven facts.
// An existing row for the same identity is left untouched.
func (p *ProofDatabase) Record(fn *cir.Function, report *FunctionReport, facts []ProvenFact) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := IdentityOf(fn)
	verified := 0
	if report.IsVerified() {
		verified = 1
	}
	_, err := p.db.Exec(
		`INSERT OR IGNORE INTO proofs (name, cir_hash, verified, session, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id.Name, int64(id.CirHash), verified, p.session, time.Now().Unix(),
	)
	if err != nil {
		p.log.Errorf("record %s: %v", id.Name, err)
		return
	}

	for _, fact := range facts {
		_, err := p.db.Exec(
			`INSERT INTO facts (name, cir_hash, point, proposition, session)
			 VALUES (?, ?, ?, ?, ?)`,
			id.Name, int64(id.CirHash), fact.Point.Index, fact.Prop.String(), p.session,
		)
		if err != nil {
			p.log.Errorf("record fact for %s: %v", id.Name, err)
			return
		}
	}
}

// Facts returns the stored facts for a function identity.
func (p *ProofDatabase) Facts(id FunctionID) ([]StoredFact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows, err := p.db.Query(
		`SELECT point, proposition FROM facts WHERE name = ? AND cir_hash = ?`,
		id.Name, int64(id.CirHash),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying facts")
	}
	defer rows.Close()

	var out []StoredFact
	for rows.Next() {
		var fact StoredFact
		fact.Point.Function = id.Name
		if err := rows.Scan(&fact.Point.Index, &fact.Proposition); err != nil {
			return nil, errors.Wrap(err, "scanning fact")
		}
		out = append(out, fact)
	}
	return out, rows.Err()
}
