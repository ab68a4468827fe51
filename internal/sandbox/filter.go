package sandbox

import (
	"fmt"
	"sort"

	"go.starlark.net/syntax"
)

// blockedIdents are names that must never appear anywhere in a submitted
// script, regardless of how they are reached. The check is on the parsed
// tree, so aliasing (`f = eval`) is caught at the identifier itself.
var blockedIdents = map[string]bool{
	"eval":       true,
	"exec":       true,
	"execfile":   true,
	"compile":    true,
	"open":       true,
	"file":       true,
	"input":      true,
	"getattr":    true,
	"setattr":    true,
	"delattr":    true,
	"globals":    true,
	"locals":     true,
	"vars":       true,
	"__import__": true,
	"os":         true,
	"sys":        true,
	"subprocess": true,
	"socket":     true,
}

// Filter statically screens script text against a fixed module allow-list.
// It parses the script and walks the syntax tree; it never executes input.
type Filter struct {
	allowed map[string]bool
}

// NewFilter builds a filter for the given allow-list of loadable modules.
// The list is system configuration, never user-supplied.
func NewFilter(allowedModules []string) *Filter {
	allowed := make(map[string]bool, len(allowedModules))
	for _, m := range allowedModules {
		allowed[m] = true
	}
	return &Filter{allowed: allowed}
}

// AllowedModules returns the allow-list in sorted order.
func (f *Filter) AllowedModules() []string {
	out := make([]string, 0, len(f.allowed))
	for m := range f.allowed {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Check returns nil when the script is acceptable, or a capability-violation
// error naming the first disallowed construct found. Traversal order is the
// syntactic order of the source, so the reported construct is deterministic.
func (f *Filter) Check(script string) error {
	// Must match the evaluator's options or the two would disagree on
	// what parses.
	opts := &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
	parsed, err := opts.Parse("script.star", script, 0)
	if err != nil {
		return &Error{
			Kind:    KindCapabilityViolation,
			Message: fmt.Sprintf("script does not parse: %v", err),
		}
	}

	var violation *Error
	for _, stmt := range parsed.Stmts {
		syntax.Walk(stmt, func(n syntax.Node) bool {
			if violation != nil {
				return false
			}
			switch n := n.(type) {
			case *syntax.LoadStmt:
				module := n.ModuleName()
				if !f.allowed[module] {
					violation = &Error{
						Kind:    KindCapabilityViolation,
						Message: fmt.Sprintf("module %q is not on the allow-list", module),
						Where:   n.Load.String(),
					}
					return false
				}
			case *syntax.Ident:
				if blockedIdents[n.Name] {
					violation = &Error{
						Kind:    KindCapabilityViolation,
						Message: fmt.Sprintf("identifier %q is not permitted", n.Name),
						Where:   n.NamePos.String(),
					}
					return false
				}
			}
			return true
		})
		if violation != nil {
			return violation
		}
	}
	return nil
}
