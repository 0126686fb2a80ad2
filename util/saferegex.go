package util

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxRegexLength is the maximum allowed whitelist regex pattern length.
	MaxRegexLength = 500
	// MaxAlternations is the maximum number of alternations in one pattern.
	MaxAlternations = 50
	// MaxNestingDepth is the maximum group nesting depth in one pattern.
	MaxNestingDepth = 3
)

// RegexValidator vets whitelist regex patterns before they are compiled.
// Rule files are operator-supplied, not attacker-supplied, but a single
// pathological pattern would slow every classification miss, so patterns are
// rejected up front rather than trusted.
type RegexValidator struct {
	maxLength int
}

// NewRegexValidator creates a RegexValidator with default limits.
func NewRegexValidator() *RegexValidator {
	return &RegexValidator{maxLength: MaxRegexLength}
}

// ValidatePattern validates a regex pattern for safety.
func (rv *RegexValidator) ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("regex pattern cannot be empty")
	}
	if len(pattern) > rv.maxLength {
		return fmt.Errorf("regex pattern too long: %d characters (max %d)", len(pattern), rv.maxLength)
	}

	if err := checkNestedQuantifiers(pattern); err != nil {
		return err
	}
	if n := strings.Count(pattern, "|"); n > MaxAlternations {
		return fmt.Errorf("too many alternations: %d (max %d)", n, MaxAlternations)
	}
	if err := checkNestingDepth(pattern); err != nil {
		return err
	}

	// Syntax check with the stdlib engine; the whitelist compiles matching
	// patterns with regexp2 afterwards, which accepts a superset.
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("invalid regex pattern: %w", err)
	}
	return nil
}

// nestedGroupQuantifiers match quantified groups that are themselves
// quantified, e.g. (a+)+ or (a*){2,}, the classic catastrophic-backtracking
// shapes.
var nestedGroupQuantifiers = []*regexp.Regexp{
	regexp.MustCompile(`\([^)]*\*\)[*+]`),
	regexp.MustCompile(`\([^)]*\+\)[*+]`),
	regexp.MustCompile(`\([^)]*[*+]\)\{`),
}

// checkNestedQuantifiers rejects adjacent or nested quantifier sequences
// that cause catastrophic backtracking.
func checkNestedQuantifiers(pattern string) error {
	dangerous := []string{
		")+*", ")*+", ")+{", ")*{",
		"}+*", "}*+", "}+{", "}*{",
		"++", "**", "*+", "+*",
	}
	for _, d := range dangerous {
		if strings.Contains(pattern, d) {
			return fmt.Errorf("pattern contains nested quantifiers which may cause ReDoS: found %q", d)
		}
	}
	for _, re := range nestedGroupQuantifiers {
		if re.MatchString(pattern) {
			return fmt.Errorf("pattern contains a quantified group under a quantifier which may cause ReDoS")
		}
	}
	return nil
}

// checkNestingDepth rejects patterns with unmatched or deeply nested groups.
func checkNestingDepth(pattern string) error {
	depth := 0
	escaped := false
	for _, ch := range pattern {
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = true
		case '(':
			depth++
			if depth > MaxNestingDepth {
				return fmt.Errorf("pattern has excessive nesting depth: %d (max %d)", depth, MaxNestingDepth)
			}
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("pattern has unmatched closing parenthesis")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("pattern has unmatched parentheses")
	}
	return nil
}
