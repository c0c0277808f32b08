package smt

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

// The model printed after a sat answer is a small s-expression
// language:
//
//	(model
//	  (define-fun lo () Int (- 9223372036854775808))
//	  (define-fun ok () Bool true))
//
// Newer solvers omit the leading `model` symbol; both forms parse.

var modelLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "whitespace", Pattern: `\s+`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "Number", Pattern: `\d+(\.\d+)?`},
	{Name: "Atom", Pattern: `[^\s()]+`},
})

type modelDoc struct {
	Entries []*modelEntry `parser:"LParen ('model')? @@* RParen"`
}

type modelEntry struct {
	Name string     `parser:"LParen 'define-fun' @(Atom | Number)"`
	Sort string     `parser:"LParen RParen @(Atom | Number)"`
	Body *modelTerm `parser:"@@ RParen"`
}

type modelTerm struct {
	Atom *string      `parser:"@(Atom | Number)"`
	List []*modelTerm `parser:"| LParen @@* RParen"`
}

var modelParser = participle.MustBuild[modelDoc](
	participle.Lexer(modelLexer),
)

// ParseModel parses a get-model response into assignments projected
// onto the declared symbols.
func ParseModel(text string) ([]Assignment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	doc, err := modelParser.ParseString("model", text)
	if err != nil {
		return nil, errors.Wrap(err, "parsing solver model")
	}

	var out []Assignment
	for _, entry := range doc.Entries {
		out = append(out, Assignment{
			Name:  entry.Name,
			Value: renderModelTerm(entry.Body),
		})
	}
	return out, nil
}

// renderModelTerm prints a model value, normalizing unary negation
// `(- 5)` to `-5`.
func renderModelTerm(t *modelTerm) string {
	if t == nil {
		return ""
	}
	if t.Atom != nil {
		return *t.Atom
	}
	if len(t.List) == 2 && t.List[0].Atom != nil && *t.List[0].Atom == "-" {
		return "-" + renderModelTerm(t.List[1])
	}
	parts := make([]string, len(t.List))
	for i, sub := range t.List {
		parts[i] = renderModelTerm(sub)
	}
	return "(" + strings.Join(parts, " ") + ")"
}
