// Package features provides the built-in statistical feature extractor. It
// turns script text into the fixed, ordered numeric vector the classifier
// models are trained on. The schema is explicit and versioned; positional
// layout never depends on map iteration order.
package features

// SchemaVersion identifies the feature layout. Models are trained against a
// specific schema version and must not be scored across versions.
const SchemaVersion = "v1"

// FeatureNames is the v1 schema: the ordered list of feature names. The
// extractor emits values in exactly this order and model weight vectors are
// laid out bias-first against it.
var FeatureNames = []string{
	"length_log",
	"entropy",
	"ratio_alpha",
	"ratio_digit",
	"ratio_whitespace",
	"ratio_punct",
	"ratio_special",
	"ratio_nonascii",
	"ratio_upper",
	"case_transitions",
	"freq_backtick",
	"freq_caret",
	"freq_dollar",
	"freq_plus",
	"freq_quote_single",
	"freq_quote_double",
	"freq_brace",
	"freq_paren",
	"freq_bracket",
	"freq_semicolon",
	"freq_pipe",
	"freq_comma",
	"freq_dot",
	"freq_percent",
	"freq_ampersand",
	"token_count_log",
	"token_len_avg",
	"token_len_max_log",
	"longest_b64_run_log",
	"longest_hex_run_log",
	"concat_density",
	"line_len_avg_log",
}

// SchemaSize is the length of a v1 feature vector.
var SchemaSize = len(FeatureNames)
