// Package whitelist decides, in bounded time, whether an item's content
// should bypass classification. Rules come from a known-good script
// directory, persistent rule files, and per-run arguments; evaluation is
// tiered (hash, content substring, regex) and short-circuits on first hit.
package whitelist

import (
	"fmt"
	"strings"
	"time"

	"argus/core"
	"argus/util"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

// compiledRegexRule pairs a regex rule with its compiled pattern.
type compiledRegexRule struct {
	rule core.WhitelistRule
	re   *regexp2.Regexp
}

// ruleTable is an immutable snapshot of the active rule sets. Tables are
// rebuilt wholesale and swapped atomically; they are never mutated after
// construction, so readers need no locking beyond fetching the pointer.
type ruleTable struct {
	hashRules    []core.WhitelistRule
	hashIndex    map[string]int // hash value -> index of first matching rule
	contentRules []core.WhitelistRule
	regexRules   []compiledRegexRule
}

// newRuleTable buckets rules by kind, preserving the order they were
// supplied in. Within the hash tier the first rule for a given hash wins, so
// source precedence is the append order chosen by the caller.
func newRuleTable(rules []core.WhitelistRule, validator *util.RegexValidator, matchTimeout time.Duration, logger *zap.SugaredLogger) *ruleTable {
	t := &ruleTable{
		hashIndex: make(map[string]int),
	}
	for _, rule := range rules {
		switch rule.Kind {
		case core.RuleKindHash:
			value := strings.ToLower(rule.Value)
			if !core.IsValidHash(value) {
				logger.Warnw("Skipping hash rule with malformed value", "name", rule.Name, "value", rule.Value)
				continue
			}
			rule.Value = value
			t.hashRules = append(t.hashRules, rule)
			if _, exists := t.hashIndex[value]; !exists {
				t.hashIndex[value] = len(t.hashRules) - 1
			}
		case core.RuleKindContent:
			t.contentRules = append(t.contentRules, rule)
		case core.RuleKindRegex:
			compiled, err := compileRegexRule(rule, validator, matchTimeout)
			if err != nil {
				logger.Warnw("Skipping unusable regex rule", "name", rule.Name, "error", err)
				continue
			}
			t.regexRules = append(t.regexRules, compiled)
		default:
			logger.Warnw("Skipping rule with unknown kind", "name", rule.Name, "kind", rule.Kind)
		}
	}
	return t
}

// compileRegexRule validates and compiles one regex rule with a match
// timeout, so a pathological pattern cannot stall the evaluator.
func compileRegexRule(rule core.WhitelistRule, validator *util.RegexValidator, matchTimeout time.Duration) (compiledRegexRule, error) {
	if err := validator.ValidatePattern(rule.Value); err != nil {
		return compiledRegexRule{}, fmt.Errorf("pattern rejected: %w", err)
	}
	re, err := regexp2.Compile(rule.Value, regexp2.None)
	if err != nil {
		return compiledRegexRule{}, fmt.Errorf("failed to compile pattern: %w", err)
	}
	re.MatchTimeout = matchTimeout
	return compiledRegexRule{rule: rule, re: re}, nil
}

// size returns the total number of usable rules in the table.
func (t *ruleTable) size() int {
	return len(t.hashRules) + len(t.contentRules) + len(t.regexRules)
}
