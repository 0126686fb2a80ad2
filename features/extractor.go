package features

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Extractor computes the v1 statistical feature vector from script text. It
// is stateless and safe for concurrent use. Syntax-tree based extractors can
// replace it behind the same interface; this one needs no parser and covers
// the character-level signals obfuscators cannot avoid disturbing.
type Extractor struct {
	logger *zap.SugaredLogger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *zap.SugaredLogger) *Extractor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Extractor{logger: logger}
}

// Name identifies the extractor and its schema.
func (e *Extractor) Name() string {
	return "static-" + SchemaVersion
}

// Extract computes the ordered v1 feature vector for a script. It fails
// loudly on empty input rather than fabricating a zero vector: an empty
// script reaching the classifier is a pipeline defect upstream.
func (e *Extractor) Extract(ctx context.Context, script string) ([]float64, error) {
	if script == "" {
		return nil, fmt.Errorf("cannot extract features from empty script")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := float64(len(script))
	counts := make(map[rune]int)
	var alpha, digit, space, punct, special, nonASCII, upper int
	caseTransitions := 0
	prevUpper := false
	prevLetter := false

	for _, r := range script {
		counts[r]++
		switch {
		case unicode.IsLetter(r):
			alpha++
			if unicode.IsUpper(r) {
				upper++
			}
			if prevLetter && unicode.IsUpper(r) != prevUpper {
				caseTransitions++
			}
			prevUpper = unicode.IsUpper(r)
			prevLetter = true
			continue
		case unicode.IsDigit(r):
			digit++
		case unicode.IsSpace(r):
			space++
		case unicode.IsPunct(r):
			punct++
		default:
			special++
		}
		if r > unicode.MaxASCII {
			nonASCII++
		}
		prevLetter = false
	}

	tokens := strings.Fields(script)
	tokenLenSum := 0
	tokenLenMax := 0
	for _, tok := range tokens {
		tokenLenSum += len(tok)
		if len(tok) > tokenLenMax {
			tokenLenMax = len(tok)
		}
	}
	tokenLenAvg := 0.0
	if len(tokens) > 0 {
		tokenLenAvg = float64(tokenLenSum) / float64(len(tokens))
	}

	lines := strings.Split(script, "\n")
	lineLenSum := 0
	for _, line := range lines {
		lineLenSum += len(line)
	}
	lineLenAvg := float64(lineLenSum) / float64(len(lines))

	freq := func(r rune) float64 { return float64(counts[r]) / n }
	concatOps := strings.Count(script, `'+'`) + strings.Count(script, `"+"`)

	vector := []float64{
		math.Log1p(n),
		entropy(script),
		float64(alpha) / n,
		float64(digit) / n,
		float64(space) / n,
		float64(punct) / n,
		float64(special) / n,
		float64(nonASCII) / n,
		float64(upper) / n,
		float64(caseTransitions) / n,
		freq('`'),
		freq('^'),
		freq('$'),
		freq('+'),
		freq('\''),
		freq('"'),
		freq('{') + freq('}'),
		freq('(') + freq(')'),
		freq('[') + freq(']'),
		freq(';'),
		freq('|'),
		freq(','),
		freq('.'),
		freq('%'),
		freq('&'),
		math.Log1p(float64(len(tokens))),
		tokenLenAvg,
		math.Log1p(float64(tokenLenMax)),
		math.Log1p(float64(longestRun(script, isBase64Rune))),
		math.Log1p(float64(longestRun(script, isHexRune))),
		float64(concatOps) / n,
		math.Log1p(lineLenAvg),
	}

	if len(vector) != SchemaSize {
		// Schema and computation drifted apart; refuse to emit a vector the
		// classifier would reject or, worse, silently misalign.
		return nil, fmt.Errorf("extractor produced %d features, schema %s declares %d",
			len(vector), SchemaVersion, SchemaSize)
	}
	return vector, nil
}

// entropy returns the Shannon entropy of the byte distribution in bits per
// byte (0 for a single repeated byte, up to 8 for uniform random bytes).
func entropy(s string) float64 {
	if s == "" {
		return 0
	}
	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}
	n := float64(len(s))
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}

// longestRun returns the length of the longest consecutive run of bytes
// matching the predicate.
func longestRun(s string, match func(byte) bool) int {
	longest, current := 0, 0
	for i := 0; i < len(s); i++ {
		if match(s[i]) {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

func isBase64Rune(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || b >= '0' && b <= '9' ||
		b == '+' || b == '/' || b == '='
}

func isHexRune(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'f' || b >= 'A' && b <= 'F'
}
