package smt

import (
	"fmt"
	"strings"
)

// Generator accumulates one SMT-LIB 2 script: sort declarations,
// constant declarations, assertions, and the closing check-sat /
// get-model pair. One obligation, one script.
type Generator struct {
	comments   []string
	sorts      []string
	datatypes  []string
	decls      []string
	asserts    []string
	declared   map[string]bool
	sortsSeen  map[string]bool
	quantified bool
	timeoutMs  int
	wantModel  bool
}

// NewGenerator creates an empty script.
func NewGenerator() *Generator {
	return &Generator{
		declared:  make(map[string]bool),
		sortsSeen: make(map[string]bool),
		wantModel: true,
	}
}

// Clone copies the script so far; the verifier reuses one function
// setup across several obligations.
func (g *Generator) Clone() *Generator {
	out := &Generator{
		comments:   append([]string(nil), g.comments...),
		sorts:      append([]string(nil), g.sorts...),
		datatypes:  append([]string(nil), g.datatypes...),
		decls:      append([]string(nil), g.decls...),
		asserts:    append([]string(nil), g.asserts...),
		declared:   make(map[string]bool, len(g.declared)),
		sortsSeen:  make(map[string]bool, len(g.sortsSeen)),
		quantified: g.quantified,
		timeoutMs:  g.timeoutMs,
		wantModel:  g.wantModel,
	}
	for k := range g.declared {
		out.declared[k] = true
	}
	for k := range g.sortsSeen {
		out.sortsSeen[k] = true
	}
	return out
}

// Comment adds a leading script comment.
func (g *Generator) Comment(text string) {
	g.comments = append(g.comments, "; "+text)
}

// DeclareSort declares an uninterpreted sort once.
func (g *Generator) DeclareSort(name string) {
	if g.sortsSeen[name] {
		return
	}
	g.sortsSeen[name] = true
	g.sorts = append(g.sorts, fmt.Sprintf("(declare-sort %s 0)", name))
}

// DeclareDatatype declares an enum as a datatype with one nullary
// constructor per variant.
func (g *Generator) DeclareDatatype(name string, variants []string) {
	if g.sortsSeen[name] {
		return
	}
	g.sortsSeen[name] = true
	ctors := make([]string, len(variants))
	for i, v := range variants {
		ctors[i] = fmt.Sprintf("(%s-%s)", name, v)
	}
	g.datatypes = append(g.datatypes,
		fmt.Sprintf("(declare-datatypes ((%s 0)) ((%s)))", name, strings.Join(ctors, " ")))
}

// DeclareConst declares a constant once; repeat declarations of the
// same name are ignored.
func (g *Generator) DeclareConst(name, sort string) {
	if g.declared[name] {
		return
	}
	g.declared[name] = true
	g.decls = append(g.decls, fmt.Sprintf("(declare-const %s %s)", name, sort))
}

// Declared reports whether name has been declared.
func (g *Generator) Declared(name string) bool { return g.declared[name] }

// Assert appends an assertion.
func (g *Generator) Assert(expr string) {
	g.asserts = append(g.asserts, fmt.Sprintf("(assert %s)", expr))
}

// MarkQuantified switches the logic to the quantified fragment.
func (g *Generator) MarkQuantified() { g.quantified = true }

// SetTimeoutMs embeds a per-obligation solver timeout.
func (g *Generator) SetTimeoutMs(ms int) { g.timeoutMs = ms }

// SetWantModel controls the closing get-model.
func (g *Generator) SetWantModel(want bool) { g.wantModel = want }

// Logic returns the logic the script will declare: AUFLIRA when
// quantifiers appear, QF_UFLIA otherwise.
func (g *Generator) Logic() string {
	if g.quantified {
		return "AUFLIRA"
	}
	return "QF_UFLIA"
}

// Generate renders the script.
func (g *Generator) Generate() string {
	var b strings.Builder
	for _, c := range g.comments {
		b.WriteString(c)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "(set-logic %s)\n", g.Logic())
	if g.timeoutMs > 0 {
		fmt.Fprintf(&b, "(set-option :timeout %d)\n", g.timeoutMs)
	}
	for _, s := range g.sorts {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	for _, d := range g.datatypes {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	for _, d := range g.decls {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	for _, a := range g.asserts {
		b.WriteString(a)
		b.WriteByte('\n')
	}
	b.WriteString("(check-sat)\n")
	if g.wantModel {
		b.WriteString("(get-model)\n")
	}
	return b.String()
}
