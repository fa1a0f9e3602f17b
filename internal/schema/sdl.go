package schema

import (
	"bytes"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/kanbangraph/internal/language"
)

// PublicSDL formats sdl without the @loader directive, as clients see it.
func PublicSDL(name, sdl string) (string, error) {
	doc, err := language.ParseSchema(name, sdl)
	if err != nil {
		return "", fmt.Errorf("parse schema %s: %w", name, err)
	}
	stripDirective(doc, LoaderDirective)
	var buf bytes.Buffer
	language.FormatSchema(&buf, doc)
	return buf.String(), nil
}

func stripDirective(doc *language.SchemaDocument, name string) {
	strip := func(defs ast.DefinitionList) {
		for _, def := range defs {
			for _, f := range def.Fields {
				f.Directives = without(f.Directives, name)
			}
		}
	}
	strip(doc.Definitions)
	strip(doc.Extensions)

	kept := doc.Directives[:0]
	for _, d := range doc.Directives {
		if d.Name != name {
			kept = append(kept, d)
		}
	}
	doc.Directives = kept
}

func without(dirs ast.DirectiveList, name string) ast.DirectiveList {
	var out ast.DirectiveList
	for _, d := range dirs {
		if d.Name != name {
			out = append(out, d)
		}
	}
	return out
}
