package core

import (
	"time"

	"github.com/google/uuid"
)

// InputItem is a normalized unit of work for the detection pipeline: the
// content to analyze and a human-readable provenance label (file path, URL,
// script ID, or "stdin").
type InputItem struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// AnalysisResult is the terminal record produced for one input item. It is
// created once per item and never mutated after being returned.
type AnalysisResult struct {
	ScanID    string    `json:"scan_id"`
	Source    string    `json:"source"`
	Content   string    `json:"content,omitempty"`
	Hash      string    `json:"hash"`
	Model     string    `json:"model,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`

	Whitelisted     bool           `json:"whitelisted"`
	WhitelistDetail WhitelistMatch `json:"whitelist_detail,omitempty"`

	Obfuscated      bool    `json:"obfuscated"`
	ObfuscatedScore float64 `json:"obfuscated_score"`

	ExtractionDuration     time.Duration `json:"extraction_duration_ns"`
	ClassificationDuration time.Duration `json:"classification_duration_ns"`

	ResultLocation string `json:"result_location,omitempty"`

	// Error carries a per-item failure (fetch, extraction, model mismatch).
	// A result with a non-empty Error has no meaningful score.
	Error string `json:"error,omitempty"`

	// PersistError is a secondary, non-fatal failure writing the result
	// store. The classification fields remain valid when it is set.
	PersistError string `json:"persist_error,omitempty"`
}

// NewAnalysisResult creates a result shell for an input item with identity
// and timestamps filled in.
func NewAnalysisResult(item InputItem) *AnalysisResult {
	return &AnalysisResult{
		ScanID:    uuid.NewString(),
		Source:    item.Source,
		Content:   item.Content,
		Hash:      HashContent(item.Content),
		ScannedAt: time.Now().UTC(),
	}
}

// Failed reports whether the item failed before producing a verdict.
func (r *AnalysisResult) Failed() bool {
	return r.Error != ""
}
