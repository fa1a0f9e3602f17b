package executor

import (
	language "github.com/hanpama/kanbangraph/internal/language"
	schema "github.com/hanpama/kanbangraph/internal/schema"
)

// fieldGroup is every selection of one response name, in document order.
type fieldGroup struct {
	name   string
	fields []*language.Field
}

// collect groups the selections of set that apply to obj by response name.
// A fragment applies when its type condition is obj, one of its interfaces,
// or a union holding it. Each named fragment is spread once.
func (x *execution) collect(obj *schema.Type, set language.SelectionSet) []fieldGroup {
	var groups []fieldGroup
	index := map[string]int{}
	spread := map[string]bool{}

	var walk func(set language.SelectionSet)
	walk = func(set language.SelectionSet) {
		for _, sel := range set {
			switch s := sel.(type) {
			case *language.Field:
				if !x.included(s.Directives) {
					continue
				}
				name := s.Alias
				if name == "" {
					name = s.Name
				}
				if i, ok := index[name]; ok {
					groups[i].fields = append(groups[i].fields, s)
					continue
				}
				index[name] = len(groups)
				groups = append(groups, fieldGroup{name: name, fields: []*language.Field{s}})
			case *language.InlineFragment:
				if x.included(s.Directives) && x.applies(s.TypeCondition, obj) {
					walk(s.SelectionSet)
				}
			case *language.FragmentSpread:
				if spread[s.Name] || !x.included(s.Directives) {
					continue
				}
				spread[s.Name] = true
				def := x.doc.Fragments.ForName(s.Name)
				if def != nil && x.included(def.Directives) && x.applies(def.TypeCondition, obj) {
					walk(def.SelectionSet)
				}
			}
		}
	}
	walk(set)
	return groups
}

func (x *execution) applies(cond string, obj *schema.Type) bool {
	return cond == "" || x.schema.IsPossibleType(cond, obj.Name)
}

// included evaluates @skip and @include.
func (x *execution) included(dirs language.DirectiveList) bool {
	if d := dirs.ForName("skip"); d != nil && x.condition(d) {
		return false
	}
	if d := dirs.ForName("include"); d != nil && !x.condition(d) {
		return false
	}
	return true
}

func (x *execution) condition(d *language.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	v, err := arg.Value.Value(x.vars)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}
