package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hypermindz/perfcrew/llm"
)

func TestNewDefaults(t *testing.T) {
	p := New(Config{APIKey: "sk-test"}, zap.NewNop())

	assert.Equal(t, "openai", p.Name())
	assert.True(t, p.SupportsNativeFunctionCalling())
	assert.Equal(t, "https://api.openai.com", p.Cfg.BaseURL)
	assert.Equal(t, "gpt-4o-mini", p.Cfg.FallbackModel)
}

func TestOrganizationHeader(t *testing.T) {
	var gotOrg, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg = r.Header.Get("OpenAI-Organization")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Organization: "org-42"}, zap.NewNop())

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "org-42", gotOrg)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}
