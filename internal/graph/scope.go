package graph

import (
	"fmt"
	"strings"
)

// AllScope is the sentinel include rule meaning "no restriction".
const AllScope = "*"

// RuleError reports an include or exclude rule that cannot be compiled.
// Scope rules are validated before any scanning begins.
type RuleError struct {
	Rule   string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("scope rule %q: %s", e.Rule, e.Reason)
}

// Scope decides which qualified names participate in transitive queries.
// A name is in scope iff it matches some include prefix (or no includes were
// configured) and matches no exclude prefix; an exclusion always wins.
// Matching is on dot-separated package segments, so "com.xyz.widget" covers
// "com.xyz.widget.Button" but not "com.xyz.widgetFactory".
type Scope struct {
	unrestricted bool
	includes     [][]string
	excludes     [][]string
}

// NewScope compiles include and exclude prefix rules. An empty include list,
// or the AllScope sentinel among the includes, lifts the inclusion
// restriction entirely.
func NewScope(includes, excludes []string) (*Scope, error) {
	s := &Scope{unrestricted: len(includes) == 0}
	for _, rule := range includes {
		if rule == AllScope {
			s.unrestricted = true
			continue
		}
		segs, err := compileRule(rule)
		if err != nil {
			return nil, err
		}
		s.includes = append(s.includes, segs)
	}
	for _, rule := range excludes {
		segs, err := compileRule(rule)
		if err != nil {
			return nil, err
		}
		s.excludes = append(s.excludes, segs)
	}
	return s, nil
}

func compileRule(rule string) ([]string, error) {
	if rule == "" {
		return nil, &RuleError{Rule: rule, Reason: "empty rule"}
	}
	segs := strings.Split(rule, ".")
	for _, seg := range segs {
		if seg == "" {
			return nil, &RuleError{Rule: rule, Reason: "empty package segment"}
		}
		if strings.ContainsAny(seg, "/\\*! \t") {
			return nil, &RuleError{Rule: rule, Reason: fmt.Sprintf("invalid character in segment %q", seg)}
		}
	}
	return segs, nil
}

// InScope reports whether name passes the include rules and no exclude rule.
func (s *Scope) InScope(name string) bool {
	segs := strings.Split(name, ".")
	if matchesAny(segs, s.excludes) {
		return false
	}
	return s.unrestricted || matchesAny(segs, s.includes)
}

// Excluded reports whether name matches an exclusion rule. Exclusions also
// gate unresolved placeholder ancestors, which are otherwise always reported
// as leaf supertypes even when they fail the include rules (system classes
// such as java.lang.Object are never independently scanned).
func (s *Scope) Excluded(name string) bool {
	return matchesAny(strings.Split(name, "."), s.excludes)
}

func matchesAny(segs []string, prefixes [][]string) bool {
	for _, prefix := range prefixes {
		if hasSegmentPrefix(segs, prefix) {
			return true
		}
	}
	return false
}

func hasSegmentPrefix(segs, prefix []string) bool {
	if len(prefix) > len(segs) {
		return false
	}
	for i, p := range prefix {
		if segs[i] != p {
			return false
		}
	}
	return true
}
