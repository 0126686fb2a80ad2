package core

import "fmt"

// RuleKind identifies the matching tier a whitelist rule belongs to.
type RuleKind string

const (
	RuleKindHash    RuleKind = "hash"
	RuleKindContent RuleKind = "content"
	RuleKindRegex   RuleKind = "regex"
)

// WhitelistRule is a single allow-list entry. Rules are immutable; the full
// rule table is rebuilt wholesale on reload, never patched in place.
type WhitelistRule struct {
	Kind  RuleKind `json:"kind"`
	Name  string   `json:"name"`
	Value string   `json:"value"`
}

// Validate performs basic validation on the rule.
func (r *WhitelistRule) Validate() error {
	switch r.Kind {
	case RuleKindHash, RuleKindContent, RuleKindRegex:
	default:
		return fmt.Errorf("invalid rule kind: %q", r.Kind)
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.Value == "" {
		return fmt.Errorf("rule value is required")
	}
	return nil
}

// WhitelistMatch is the outcome of evaluating an item against the allow-list.
// The zero value means no tier matched.
type WhitelistMatch struct {
	Match bool     `json:"match"`
	Kind  RuleKind `json:"kind,omitempty"`
	Name  string   `json:"name,omitempty"`
	Value string   `json:"value,omitempty"`
}
