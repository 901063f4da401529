package providers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypermindz/perfcrew/llm"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		msg       string
		code      llm.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, "bad key", llm.ErrUnauthorized, false},
		{"forbidden", http.StatusForbidden, "no access", llm.ErrForbidden, false},
		{"rate limited", http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true},
		{"bad request", http.StatusBadRequest, "missing field", llm.ErrInvalidRequest, false},
		{"quota as 400", http.StatusBadRequest, "insufficient quota", llm.ErrQuotaExceeded, false},
		{"bad gateway", http.StatusBadGateway, "upstream", llm.ErrUpstreamError, true},
		{"overloaded", 529, "busy", llm.ErrModelOverloaded, true},
		{"teapot", http.StatusTeapot, "odd", llm.ErrUpstreamError, false},
		{"internal", http.StatusInternalServerError, "oops", llm.ErrUpstreamError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.status, tt.msg, "test")
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, tt.msg, err.Message)
		})
	}
}

func TestReadErrorMessage(t *testing.T) {
	msg := ReadErrorMessage(strings.NewReader(`{"error": {"message": "broken", "type": "server_error"}}`))
	assert.Equal(t, "broken (type: server_error)", msg)

	msg = ReadErrorMessage(strings.NewReader(`{"error": {"message": "broken"}}`))
	assert.Equal(t, "broken", msg)

	msg = ReadErrorMessage(strings.NewReader("plain text failure"))
	assert.Equal(t, "plain text failure", msg)
}

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "req-model", ChooseModel(&llm.ChatRequest{Model: "req-model"}, "default", "fallback"))
	assert.Equal(t, "default", ChooseModel(&llm.ChatRequest{}, "default", "fallback"))
	assert.Equal(t, "fallback", ChooseModel(nil, "", "fallback"))
}

func TestConvertMessagesRoundTrip(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: "be helpful"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "lookup", Arguments: json.RawMessage(`{"q":"x"}`)},
		}},
		{Role: llm.RoleTool, Name: "lookup", Content: `{"rows":1}`, ToolCallID: "c1"},
	}

	wire := ConvertMessagesToOpenAI(msgs)
	require.Len(t, wire, 3)
	assert.Equal(t, "system", wire[0].Role)
	require.Len(t, wire[1].ToolCalls, 1)
	assert.Equal(t, "function", wire[1].ToolCalls[0].Type)
	assert.Equal(t, "lookup", wire[1].ToolCalls[0].Function.Name)
	assert.Equal(t, "c1", wire[2].ToolCallID)
}

func TestConvertToolsToOpenAI(t *testing.T) {
	assert.Nil(t, ConvertToolsToOpenAI(nil))

	wire := ConvertToolsToOpenAI([]llm.ToolSchema{
		{Name: "lookup", Description: "find things", Parameters: json.RawMessage(`{"type":"object"}`)},
	})
	require.Len(t, wire, 1)
	assert.Equal(t, "function", wire[0].Type)
	assert.Equal(t, "lookup", wire[0].Function.Name)
}

func TestToLLMChatResponse(t *testing.T) {
	oa := OpenAICompatResponse{
		ID:    "resp-1",
		Model: "test-model",
		Choices: []OpenAICompatChoice{{
			Index:        0,
			FinishReason: "stop",
			Message:      OpenAICompatMessage{Role: "assistant", Content: "hi"},
		}},
		Usage: &OpenAICompatUsage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
	}

	resp := ToLLMChatResponse(oa, "test")
	assert.Equal(t, "test", resp.Provider)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}
