package detect

import "errors"

// Detection pipeline error constants. Per-item errors are local to the item
// that raised them and never poison the rest of a batch.
var (
	// ErrExtractionFailed is returned when the external feature extractor
	// fails for an item. The item's result carries the error instead of a
	// fabricated score.
	ErrExtractionFailed = errors.New("feature extraction failed")

	// ErrContentUnavailable is returned when an item's content could not be
	// fetched or read.
	ErrContentUnavailable = errors.New("content unavailable")

	// ErrEmptyContent is returned for items with no content to analyze.
	ErrEmptyContent = errors.New("empty content")
)
