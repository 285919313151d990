package graph

import (
	"errors"
	"testing"
)

func TestScopeSegmentMatching(t *testing.T) {
	scope, err := NewScope([]string{"com.xyz.widget"}, nil)
	if err != nil {
		t.Fatalf("NewScope: %v", err)
	}

	tests := []struct {
		name string
		want bool
	}{
		{"com.xyz.widget.Button", true},
		{"com.xyz.widget.impl.ButtonImpl", true},
		{"com.xyz.widget", true},
		{"com.xyz.widgetFactory", false}, // prefix of the string, not of the segments
		{"com.xyz.widgetFactory.Builder", false},
		{"com.xyz", false},
		{"org.other.Widget", false},
	}
	for _, tt := range tests {
		if got := scope.InScope(tt.name); got != tt.want {
			t.Errorf("InScope(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestScopeExclusionWins(t *testing.T) {
	scope, err := NewScope(
		[]string{"com.xyz"},
		[]string{"com.xyz.internal"},
	)
	if err != nil {
		t.Fatalf("NewScope: %v", err)
	}

	if !scope.InScope("com.xyz.Widget") {
		t.Error("included name reported out of scope")
	}
	if scope.InScope("com.xyz.internal.Helper") {
		t.Error("exclusion did not win over the enclosing inclusion")
	}
	if !scope.Excluded("com.xyz.internal.Helper") {
		t.Error("Excluded did not match the exclusion rule")
	}
	if scope.Excluded("com.xyz.Widget") {
		t.Error("Excluded matched a non-excluded name")
	}
}

func TestScopeUnrestricted(t *testing.T) {
	tests := []struct {
		name     string
		includes []string
	}{
		{"empty include list", nil},
		{"star sentinel", []string{AllScope}},
		{"star among rules", []string{"com.xyz", AllScope}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := NewScope(tt.includes, []string{"org.skip"})
			if err != nil {
				t.Fatalf("NewScope: %v", err)
			}
			if !scope.InScope("anything.at.All") {
				t.Error("unrestricted scope rejected a name")
			}
			if scope.InScope("org.skip.Thing") {
				t.Error("unrestricted scope ignored the exclusion")
			}
		})
	}
}

func TestScopeRuleErrors(t *testing.T) {
	bad := []string{
		"",
		"com..xyz",
		".com.xyz",
		"com.xyz.",
		"com/xyz",
		"com.xy*z",
		"com.x z",
	}
	for _, rule := range bad {
		_, err := NewScope([]string{rule}, nil)
		var ruleErr *RuleError
		if !errors.As(err, &ruleErr) {
			t.Errorf("NewScope(include %q) = %v, want RuleError", rule, err)
		}

		_, err = NewScope(nil, []string{rule})
		if !errors.As(err, &ruleErr) {
			t.Errorf("NewScope(exclude %q) = %v, want RuleError", rule, err)
		}
	}
}
