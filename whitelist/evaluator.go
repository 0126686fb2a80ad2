package whitelist

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"argus/core"
	"argus/metrics"
	"argus/util"

	"go.uber.org/zap"
)

// DefaultRegexTimeout bounds one regex-tier match attempt.
const DefaultRegexTimeout = 500 * time.Millisecond

// Config holds configuration for an Evaluator.
type Config struct {
	// KnownGoodDir is a directory of known-good script contents, hashed at
	// load time into hash-tier rules.
	KnownGoodDir string
	// HashRulesFile, ContentRulesFile and RegexRulesFile are line-oriented
	// name,value rule files for their respective tiers.
	HashRulesFile    string
	ContentRulesFile string
	RegexRulesFile   string
	// RegexTimeout bounds a single regex match (default 500ms).
	RegexTimeout time.Duration
	Logger       *zap.SugaredLogger
}

// Evaluator is the tiered allow-list evaluator. The persistent rule table is
// read-mostly state rebuilt wholesale by Reload and swapped under a lock, so
// in-flight evaluations observe either the fully-old or fully-new table.
type Evaluator struct {
	loader       *Loader
	validator    *util.RegexValidator
	regexTimeout time.Duration
	logger       *zap.SugaredLogger

	// gen counts table swaps so callers caching verdicts derived from the
	// table can detect that a reload made them stale.
	gen atomic.Uint64

	mu    sync.RWMutex
	table *ruleTable
}

// RunRules holds per-run rules already bucketed and compiled. They are
// merged with the persistent table for the duration of one pipeline
// invocation and do not outlive it.
type RunRules struct {
	table *ruleTable
}

// NewEvaluator creates an Evaluator and performs the initial rule load.
// Load failures degrade to a smaller (possibly empty) rule table.
func NewEvaluator(cfg *Config) *Evaluator {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.RegexTimeout <= 0 {
		cfg.RegexTimeout = DefaultRegexTimeout
	}

	e := &Evaluator{
		loader: &Loader{
			knownGoodDir:     cfg.KnownGoodDir,
			hashRulesFile:    cfg.HashRulesFile,
			contentRulesFile: cfg.ContentRulesFile,
			regexRulesFile:   cfg.RegexRulesFile,
			logger:           cfg.Logger,
		},
		validator:    util.NewRegexValidator(),
		regexTimeout: cfg.RegexTimeout,
		logger:       cfg.Logger,
	}
	e.Reload()
	return e
}

// Reload rebuilds the persistent rule table wholesale from the backing
// stores and swaps it in atomically. Any change-detection mechanism (file
// watcher, poll loop, manual trigger) may invoke it.
func (e *Evaluator) Reload() {
	rules := e.loader.load()
	table := newRuleTable(rules, e.validator, e.regexTimeout, e.logger)

	e.mu.Lock()
	e.table = table
	e.mu.Unlock()
	e.gen.Add(1)

	metrics.WhitelistReloads.Inc()
	e.logger.Infow("Whitelist rule table rebuilt",
		"hash_rules", len(table.hashRules),
		"content_rules", len(table.contentRules),
		"regex_rules", len(table.regexRules))
}

// Generation returns the current rule-table generation. It increments on
// every Reload.
func (e *Evaluator) Generation() uint64 {
	return e.gen.Load()
}

// RuleCount returns the number of usable persistent rules.
func (e *Evaluator) RuleCount() int {
	return e.snapshot().size()
}

// NewRunRules buckets and compiles rules supplied for the current run only.
// Unusable rules are dropped with a diagnostic, matching reload semantics.
func (e *Evaluator) NewRunRules(rules []core.WhitelistRule) *RunRules {
	if len(rules) == 0 {
		return nil
	}
	return &RunRules{table: newRuleTable(rules, e.validator, e.regexTimeout, e.logger)}
}

// Evaluate decides whether (content, hash) is whitelisted. Tier order is
// fixed and short-circuits on first hit: hash, then content substring, then
// regex. Within each tier persistent rules precede per-run rules.
func (e *Evaluator) Evaluate(content, hash string, run *RunRules) core.WhitelistMatch {
	persistent := e.snapshot()
	tables := []*ruleTable{persistent}
	if run != nil {
		tables = append(tables, run.table)
	}

	for _, t := range tables {
		if idx, ok := t.hashIndex[strings.ToLower(hash)]; ok {
			rule := t.hashRules[idx]
			metrics.WhitelistHits.WithLabelValues(string(core.RuleKindHash)).Inc()
			return matchFor(rule)
		}
	}

	for _, t := range tables {
		for _, rule := range t.contentRules {
			if strings.Contains(content, rule.Value) {
				metrics.WhitelistHits.WithLabelValues(string(core.RuleKindContent)).Inc()
				return matchFor(rule)
			}
		}
	}

	for _, t := range tables {
		for _, compiled := range t.regexRules {
			matched, err := compiled.re.MatchString(content)
			if err != nil {
				// Timeout or engine failure on one pattern must not block
				// the remaining rules.
				e.logger.Warnw("Regex rule evaluation failed",
					"name", compiled.rule.Name, "error", err)
				continue
			}
			if matched {
				metrics.WhitelistHits.WithLabelValues(string(core.RuleKindRegex)).Inc()
				return matchFor(compiled.rule)
			}
		}
	}

	return core.WhitelistMatch{}
}

// snapshot returns the current rule table pointer.
func (e *Evaluator) snapshot() *ruleTable {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.table
}

func matchFor(rule core.WhitelistRule) core.WhitelistMatch {
	return core.WhitelistMatch{
		Match: true,
		Kind:  rule.Kind,
		Name:  rule.Name,
		Value: rule.Value,
	}
}
