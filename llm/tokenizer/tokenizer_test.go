package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatorCountTokens(t *testing.T) {
	e := NewEstimatorTokenizer("any-model", 0)

	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// 16 ASCII chars at ~4 chars per token.
	n, err = e.CountTokens("abcdefghijklmnop")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Short text still counts as at least one token.
	n, err = e.CountTokens("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEstimatorCJKDensity(t *testing.T) {
	e := NewEstimatorTokenizer("any-model", 0)

	ascii, err := e.CountTokens("aaaaaa")
	require.NoError(t, err)
	cjk, err := e.CountTokens("你好世界你好")
	require.NoError(t, err)
	assert.Greater(t, cjk, ascii, "CJK text packs more tokens per character")
}

func TestEstimatorCountMessages(t *testing.T) {
	e := NewEstimatorTokenizer("any-model", 0)

	n, err := e.CountMessages([]Message{
		{Role: "system", Content: "abcdefgh"},
		{Role: "user", Content: "abcd"},
	})
	require.NoError(t, err)
	// 2 + 1 content tokens, 4 overhead per message, 3 trailing.
	assert.Equal(t, 2+1+2*4+3, n)
}

func TestEstimatorDefaults(t *testing.T) {
	e := NewEstimatorTokenizer("any-model", 0)
	assert.Equal(t, 4096, e.MaxTokens())
	assert.Equal(t, "estimator", e.Name())

	e = NewEstimatorTokenizer("any-model", 1000)
	assert.Equal(t, 1000, e.MaxTokens())
}

func TestRegistryPrefixMatch(t *testing.T) {
	est := NewEstimatorTokenizer("custom", 0)
	RegisterTokenizer("custom-model", est)

	got, err := GetTokenizer("custom-model")
	require.NoError(t, err)
	assert.Same(t, est, got)

	got, err = GetTokenizer("custom-model-v2")
	require.NoError(t, err)
	assert.Same(t, est, got)

	_, err = GetTokenizer("unrelated")
	require.Error(t, err)
}

func TestGetTokenizerOrEstimatorFallback(t *testing.T) {
	got := GetTokenizerOrEstimator("never-registered-model")
	assert.Equal(t, "estimator", got.Name())
}

func TestNewTiktokenTokenizer(t *testing.T) {
	tk, err := NewTiktokenTokenizer("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, 128000, tk.MaxTokens())
	assert.Equal(t, "tiktoken[o200k_base]", tk.Name())

	// Unknown models fall back to cl100k_base.
	tk, err = NewTiktokenTokenizer("mystery-model")
	require.NoError(t, err)
	assert.Equal(t, "tiktoken[cl100k_base]", tk.Name())
	assert.Equal(t, 8192, tk.MaxTokens())
}
