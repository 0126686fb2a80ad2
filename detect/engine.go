// Package detect orchestrates the detection pipeline: content hashing,
// allow-list short-circuit, feature extraction, classification, timing and
// result assembly.
package detect

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"argus/classifier"
	"argus/core"
	"argus/metrics"
	"argus/whitelist"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultCacheSize is the default capacity of the per-process result cache.
const DefaultCacheSize = 1024

// Config holds configuration for an Engine.
type Config struct {
	Classifier *classifier.Classifier
	Whitelist  *whitelist.Evaluator
	Extractor  FeatureExtractor

	// Model selects the weight vector for this engine (default: "default").
	// The name is resolved at construction; an unknown model is a
	// deployment defect and fails the run before any item is processed.
	Model string

	// RunRules are whitelist rules scoped to this engine's invocation.
	RunRules []core.WhitelistRule

	// Persister, when set together with PersistDetections, stores the
	// content of positive detections content-addressed by hash.
	Persister         ResultPersister
	PersistDetections bool

	// Workers > 1 processes batches with a worker pool; output order is
	// restored to input order either way.
	Workers int

	// CacheSize bounds the per-process result cache (default 1024).
	CacheSize int

	Logger *zap.SugaredLogger
}

// Engine sequences the detection pipeline for input items. All shared state
// (rule tables, model vectors) is read-mostly; Engine is safe for concurrent
// use.
type Engine struct {
	classifier *classifier.Classifier
	whitelist  *whitelist.Evaluator
	extractor  FeatureExtractor
	model      string
	runRules   *whitelist.RunRules
	persister  ResultPersister
	persist    bool
	workers    int
	cache      *lru.Cache[string, *core.AnalysisResult]
	logger     *zap.SugaredLogger
}

// NewEngine creates an Engine and validates its configuration. A model name
// that cannot be resolved is fatal here: it indicates a build or deployment
// defect, not bad input.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine config cannot be nil")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("engine requires a feature extractor")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classifier.New(&classifier.Config{Logger: cfg.Logger})
	}
	if cfg.Whitelist == nil {
		cfg.Whitelist = whitelist.NewEvaluator(&whitelist.Config{Logger: cfg.Logger})
	}
	if cfg.Model == "" {
		cfg.Model = classifier.ModelDefault
	}
	if _, err := cfg.Classifier.Models().Get(cfg.Model); err != nil {
		return nil, fmt.Errorf("cannot build engine: %w", err)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, *core.AnalysisResult](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	return &Engine{
		classifier: cfg.Classifier,
		whitelist:  cfg.Whitelist,
		extractor:  cfg.Extractor,
		model:      cfg.Model,
		runRules:   cfg.Whitelist.NewRunRules(cfg.RunRules),
		persister:  cfg.Persister,
		persist:    cfg.PersistDetections && cfg.Persister != nil,
		workers:    cfg.Workers,
		cache:      cache,
		logger:     cfg.Logger,
	}, nil
}

// Model returns the engine's model name.
func (e *Engine) Model() string {
	return e.model
}

// Analyze runs the full per-item pipeline and returns the terminal result.
// Item state advances Received → Hashed → WhitelistHit(Done) or
// WhitelistMiss → Extracted → Scored → Done; errors after hashing are
// recorded on the result rather than returned.
func (e *Engine) Analyze(ctx context.Context, item core.InputItem) *core.AnalysisResult {
	return e.analyzeAs(ctx, item, e.model)
}

// AnalyzeWithModel scores an item under a caller-selected model instead of
// the engine default. Unlike the construction-time model, the name here is
// caller input, so an unknown model is returned as an error.
func (e *Engine) AnalyzeWithModel(ctx context.Context, item core.InputItem, modelName string) (*core.AnalysisResult, error) {
	if modelName == "" || modelName == e.model {
		return e.analyzeAs(ctx, item, e.model), nil
	}
	if _, err := e.classifier.Models().Get(modelName); err != nil {
		return nil, err
	}
	return e.analyzeAs(ctx, item, modelName), nil
}

func (e *Engine) analyzeAs(ctx context.Context, item core.InputItem, model string) *core.AnalysisResult {
	metrics.ItemsScanned.WithLabelValues(sourceKind(item.Source)).Inc()

	result := core.NewAnalysisResult(item)
	result.Model = model

	if item.Content == "" {
		result.Error = ErrEmptyContent.Error()
		metrics.ItemErrors.WithLabelValues("normalize").Inc()
		return result
	}

	// The key carries the whitelist table generation so verdicts cached
	// before a rule reload are never served after it.
	cacheKey := fmt.Sprintf("%d:%s:%s", e.whitelist.Generation(), model, result.Hash)
	if cached, ok := e.cache.Get(cacheKey); ok && !cached.Failed() {
		e.logger.Debugw("Result cache hit", "hash", result.Hash, "source", item.Source)
		copied := *cached
		copied.ScanID = result.ScanID
		copied.Source = result.Source
		copied.ScannedAt = result.ScannedAt
		return &copied
	}

	// Allow-list short circuit: a hit produces a terminal negative result
	// with zero durations and no further work.
	if match := e.whitelist.Evaluate(item.Content, result.Hash, e.runRules); match.Match {
		result.Whitelisted = true
		result.WhitelistDetail = match
		e.cache.Add(cacheKey, result)
		return result
	}

	extractStart := time.Now()
	featureVector, err := e.extractor.Extract(ctx, item.Content)
	result.ExtractionDuration = time.Since(extractStart)
	if err != nil {
		result.Error = fmt.Errorf("%w: %v", ErrExtractionFailed, err).Error()
		metrics.ItemErrors.WithLabelValues("extract").Inc()
		e.logger.Errorw("Feature extraction failed",
			"source", item.Source, "hash", result.Hash, "error", err)
		return result
	}
	metrics.ExtractionDuration.Observe(result.ExtractionDuration.Seconds())

	classifyStart := time.Now()
	verdict, err := e.classifier.Score(featureVector, model)
	result.ClassificationDuration = time.Since(classifyStart)
	if err != nil {
		// Configuration mismatch (vector length vs model) fails the item
		// distinctly from a negative classification; it is never coerced
		// into a score.
		result.Error = err.Error()
		metrics.ItemErrors.WithLabelValues("classify").Inc()
		e.logger.Errorw("Classification failed",
			"source", item.Source, "model", model, "error", err)
		return result
	}
	metrics.ClassificationDuration.Observe(result.ClassificationDuration.Seconds())

	result.Obfuscated = verdict.Obfuscated
	result.ObfuscatedScore = verdict.Score

	if result.Obfuscated {
		metrics.Detections.WithLabelValues(model).Inc()
		if e.persist {
			location, err := e.persister.Persist(result.Hash, item.Content)
			if err != nil {
				// Persistence failure must not invalidate the verdict.
				result.PersistError = err.Error()
				metrics.ItemErrors.WithLabelValues("persist").Inc()
				e.logger.Errorw("Failed to persist detection",
					"hash", result.Hash, "error", err)
			} else {
				result.ResultLocation = location
			}
		}
	}

	e.cache.Add(cacheKey, result)
	return result
}

// AnalyzeBatch processes items and returns one result per item, in input
// order. Per-item failures are recorded on their results; the batch always
// completes.
func (e *Engine) AnalyzeBatch(ctx context.Context, items []core.InputItem) []*core.AnalysisResult {
	if e.workers <= 1 || len(items) < 2 {
		results := make([]*core.AnalysisResult, len(items))
		for i, item := range items {
			results[i] = e.Analyze(ctx, item)
		}
		return results
	}

	// Worker pool: items are independent and all shared state is
	// read-mostly, so fan-out is safe. Results land at their input index to
	// restore input order.
	results := make([]*core.AnalysisResult, len(items))
	indexes := make(chan int)
	var wg sync.WaitGroup

	workers := e.workers
	if workers > len(items) {
		workers = len(items)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = e.Analyze(ctx, items[i])
			}
		}()
	}

	for i := range items {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

// sourceKind buckets item provenance for metrics labels.
func sourceKind(source string) string {
	switch {
	case source == "stdin":
		return "stdin"
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return "url"
	case strings.HasPrefix(source, "script:"):
		return "script"
	default:
		return "file"
	}
}
