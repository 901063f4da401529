package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hypermindz/perfcrew/llm"
)

type scriptedProvider struct {
	responses []*llm.ChatResponse
	calls     int
}

func (s *scriptedProvider) Completion(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
	if s.calls >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func (s *scriptedProvider) Stream(context.Context, *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}

func (s *scriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) SupportsNativeFunctionCalling() bool { return true }

func toolCallResponse(calls ...llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			FinishReason: "tool_calls",
			Message:      llm.Message{Role: llm.RoleAssistant, ToolCalls: calls},
		}},
	}
}

func finalResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		}},
	}
}

func newReActFixture(t *testing.T, provider llm.Provider, cfg ReActConfig) (*ReActExecutor, *Registry) {
	t.Helper()
	registry := NewRegistry(zap.NewNop())
	executor := NewExecutor(registry, zap.NewNop())
	return NewReActExecutor(provider, executor, cfg, zap.NewNop()), registry
}

func TestReActLoop(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolCallResponse(llm.ToolCall{ID: "c1", Name: "lookup", Arguments: json.RawMessage(`{"q":"top"}`)}),
		finalResponse("done"),
	}}
	react, registry := newReActFixture(t, provider, ReActConfig{})

	var gotArgs string
	require.NoError(t, registry.Register("lookup", func(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
		gotArgs = string(args)
		return json.RawMessage(`{"rows":3}`), nil
	}, ToolMetadata{}))

	resp, steps, err := react.Execute(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "go"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Choices[0].Message.Content)
	assert.JSONEq(t, `{"q":"top"}`, gotArgs)

	require.Len(t, steps, 2)
	assert.Len(t, steps[0].Actions, 1)
	assert.Len(t, steps[0].Observations, 1)
	assert.Empty(t, steps[1].Actions)
}

func TestReActNoToolsNeeded(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{finalResponse("direct")}}
	react, _ := newReActFixture(t, provider, ReActConfig{})

	resp, steps, err := react.Execute(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "go"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", resp.Choices[0].Message.Content)
	assert.Len(t, steps, 1)
	assert.Equal(t, 1, provider.calls)
}

func TestReActMaxIterations(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolCallResponse(llm.ToolCall{ID: "c1", Name: "lookup", Arguments: json.RawMessage(`{}`)}),
	}}
	react, registry := newReActFixture(t, provider, ReActConfig{MaxIterations: 3})
	require.NoError(t, registry.Register("lookup", echoTool, ToolMetadata{}))

	_, steps, err := react.Execute(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "go"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max iterations")
	assert.Len(t, steps, 3)
}

func TestReActStopOnError(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolCallResponse(llm.ToolCall{ID: "c1", Name: "ghost"}),
		finalResponse("never reached"),
	}}
	react, _ := newReActFixture(t, provider, ReActConfig{StopOnError: true})

	_, _, err := react.Execute(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "go"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool execution failed")
}

func TestReActToolErrorFedBack(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolCallResponse(llm.ToolCall{ID: "c1", Name: "ghost"}),
		finalResponse("recovered"),
	}}
	react, _ := newReActFixture(t, provider, ReActConfig{})

	resp, steps, err := react.Execute(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "go"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Choices[0].Message.Content)
	require.Len(t, steps, 2)
	assert.NotEmpty(t, steps[0].Observations[0].Error)
}

func TestToolResultToMessage(t *testing.T) {
	msg := ToolResult{
		ToolCallID: "c1",
		Name:       "lookup",
		Result:     json.RawMessage(`{"rows":3}`),
	}.ToMessage()
	assert.Equal(t, llm.RoleTool, msg.Role)
	assert.Equal(t, "lookup", msg.Name)
	assert.Equal(t, "c1", msg.ToolCallID)
	assert.JSONEq(t, `{"rows":3}`, msg.Content)

	errMsg := ToolResult{ToolCallID: "c2", Name: "lookup", Error: "boom"}.ToMessage()
	assert.JSONEq(t, `{"error":"boom"}`, errMsg.Content)
}
