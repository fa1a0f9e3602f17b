// Package complexity rejects query documents whose alias fan-out exceeds
// configured limits, before any resolver runs.
package complexity

import (
	language "github.com/hanpama/kanbangraph/internal/language"
)

// Node is one field of a query's selection tree. Depth is 1 for the fields of
// an operation's root selection set.
type Node struct {
	Name     string
	Alias    string
	Depth    int
	Children []*Node
}

// Aliased reports whether the field was renamed by the caller. The parser
// fills Alias with the field name when none was written.
func (n *Node) Aliased() bool { return n.Alias != "" && n.Alias != n.Name }

// Tree returns the root fields of every query operation in doc. Fragment
// spreads and inline fragments contribute their fields at the depth of the
// enclosing selection set. A named fragment already being expanded on the
// current path is skipped.
//
// Tree and Count are the reference model for Analyze, which Guard uses:
// Count(Tree(doc)) equals Analyze(doc) for every document, but Tree expands
// a fragment at each spread and can grow exponentially with nested spreads.
func Tree(doc *language.QueryDocument) []*Node {
	var roots []*Node
	for _, op := range doc.Operations {
		if op.Operation != language.Query {
			continue
		}
		roots = append(roots, buildNodes(doc, op.SelectionSet, 1, map[string]bool{})...)
	}
	return roots
}

func buildNodes(doc *language.QueryDocument, set language.SelectionSet, depth int, path map[string]bool) []*Node {
	var out []*Node
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			out = append(out, &Node{
				Name:     sel.Name,
				Alias:    sel.Alias,
				Depth:    depth,
				Children: buildNodes(doc, sel.SelectionSet, depth+1, path),
			})
		case *language.InlineFragment:
			out = append(out, buildNodes(doc, sel.SelectionSet, depth, path)...)
		case *language.FragmentSpread:
			def := fragment(doc, sel)
			if def == nil || path[def.Name] {
				continue
			}
			path[def.Name] = true
			out = append(out, buildNodes(doc, def.SelectionSet, depth, path)...)
			delete(path, def.Name)
		}
	}
	return out
}

func fragment(doc *language.QueryDocument, spread *language.FragmentSpread) *language.FragmentDefinition {
	if spread.Definition != nil {
		return spread.Definition
	}
	return doc.Fragments.ForName(spread.Name)
}
