package detect

import "context"

// FeatureExtractor turns script text into the ordered numeric vector the
// classifier scores. The vector's positional layout must match the layout
// the selected model was trained on; an implementation must fail loudly
// rather than return a short or empty vector, since a length mismatch is
// fatal for the item. Extraction is treated as an opaque, potentially slow
// call, so it takes the per-item context.
type FeatureExtractor interface {
	// Extract computes the feature vector for a script.
	Extract(ctx context.Context, script string) ([]float64, error)

	// Name identifies the extractor implementation and schema.
	Name() string
}

// ResultPersister stores the content of positive detections, addressed by
// content hash. Writing the same hash twice is a no-op: payloads for one
// hash are byte-identical by construction.
type ResultPersister interface {
	// Persist writes content under its hash and returns the location.
	Persist(hash, content string) (string, error)
}
