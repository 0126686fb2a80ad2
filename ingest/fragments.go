package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"argus/core"

	"go.uber.org/zap"
)

// maxFragmentLineBytes bounds a single JSON-lines record. Fragments are
// chunks by definition; a multi-megabyte single line is a malformed feed.
const maxFragmentLineBytes = 4 * 1024 * 1024

// FragmentReaderConfig holds configuration for a FragmentReader.
type FragmentReaderConfig struct {
	Logger *zap.SugaredLogger
}

// FragmentReader parses a JSON-lines stream of log fragments. Malformed
// records are skipped with a diagnostic rather than failing the stream: one
// bad log line must not discard an entire export.
type FragmentReader struct {
	logger *zap.SugaredLogger
}

// NewFragmentReader creates a FragmentReader. A nil config uses a no-op logger.
func NewFragmentReader(cfg *FragmentReaderConfig) *FragmentReader {
	if cfg == nil {
		cfg = &FragmentReaderConfig{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &FragmentReader{logger: cfg.Logger}
}

// Read consumes r to EOF and returns the parseable fragments in stream order.
func (fr *FragmentReader) Read(r io.Reader) ([]core.LogFragment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFragmentLineBytes)

	var fragments []core.LogFragment
	lineNo := 0
	skipped := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var frag core.LogFragment
		if err := json.Unmarshal([]byte(line), &frag); err != nil {
			skipped++
			fr.logger.Warnw("Skipping malformed fragment record",
				"line", lineNo, "error", err)
			continue
		}
		if err := validateFragment(&frag); err != nil {
			skipped++
			fr.logger.Warnw("Skipping invalid fragment record",
				"line", lineNo, "error", err)
			continue
		}
		fragments = append(fragments, frag)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fragment stream: %w", err)
	}

	if skipped > 0 {
		fr.logger.Infow("Fragment stream parsed with skips",
			"fragments", len(fragments), "skipped", skipped)
	}
	return fragments, nil
}

func validateFragment(frag *core.LogFragment) error {
	if frag.ScriptID == "" {
		return fmt.Errorf("missing script_id")
	}
	if frag.SequenceNumber < 0 {
		return fmt.Errorf("sequence_number cannot be negative, got %d", frag.SequenceNumber)
	}
	if frag.ChunkTotal < 0 {
		return fmt.Errorf("chunk_total cannot be negative, got %d", frag.ChunkTotal)
	}
	return nil
}
