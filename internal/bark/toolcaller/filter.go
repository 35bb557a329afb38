package toolcaller

import "strings"

// Filter is a parsed tool-name filter expression: a whitespace-separated
// sequence of clauses evaluated against a federated tool name. A matching
// deny clause rejects the tool wherever it appears in the expression;
// otherwise the tool is admitted if any allow clause matches. An empty
// expression admits every tool.
//
// Clause grammar, grounded on the original apply_tool_filters
// (original_source/src/clients/tools.rs:7):
//
//	!x   deny if the tool name contains x (wins over every allow clause)
//	=x   allow if the tool name equals x exactly
//	@x   allow if the tool name starts with x
//	*x   allow if the tool name contains x
//
// If no clause matches, the tool is admitted iff the filter list is empty.
type Filter struct {
	rules []filterRule
}

type filterKind int

const (
	filterDenyContains filterKind = iota
	filterAllowExact
	filterAllowPrefix
	filterAllowContains
)

type filterRule struct {
	kind filterKind
	arg  string
}

// ParseFilter builds a Filter from a filter expression. Malformed clauses
// (missing an argument after their sigil) are skipped rather than
// rejected outright, so a typo in one clause of a long filter doesn't take
// down every tool the tree needs.
func ParseFilter(expr string) Filter {
	var f Filter
	for _, tok := range strings.Fields(expr) {
		switch {
		case strings.HasPrefix(tok, "!"):
			if arg := tok[1:]; arg != "" {
				f.rules = append(f.rules, filterRule{kind: filterDenyContains, arg: arg})
			}
		case strings.HasPrefix(tok, "="):
			if arg := tok[1:]; arg != "" {
				f.rules = append(f.rules, filterRule{kind: filterAllowExact, arg: arg})
			}
		case strings.HasPrefix(tok, "@"):
			if arg := tok[1:]; arg != "" {
				f.rules = append(f.rules, filterRule{kind: filterAllowPrefix, arg: arg})
			}
		case strings.HasPrefix(tok, "*"):
			if arg := tok[1:]; arg != "" {
				f.rules = append(f.rules, filterRule{kind: filterAllowContains, arg: arg})
			}
		}
	}
	return f
}

// Allows reports whether the federated tool name ("server__tool") passes
// this filter: any matching deny clause rejects it, whatever the order the
// clauses were written in; otherwise a matching allow clause admits it;
// with no match at all, a tool is admitted iff the filter list is empty.
func (f Filter) Allows(federatedName string) bool {
	for _, r := range f.rules {
		if r.kind == filterDenyContains && strings.Contains(federatedName, r.arg) {
			return false
		}
	}
	for _, r := range f.rules {
		switch r.kind {
		case filterAllowExact:
			if federatedName == r.arg {
				return true
			}
		case filterAllowPrefix:
			if strings.HasPrefix(federatedName, r.arg) {
				return true
			}
		case filterAllowContains:
			if strings.Contains(federatedName, r.arg) {
				return true
			}
		}
	}
	return len(f.rules) == 0
}
