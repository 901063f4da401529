package crew

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hypermindz/perfcrew/llm"
	"github.com/hypermindz/perfcrew/llm/tools"
)

func newTestAgent(t *testing.T, role Role, provider llm.Provider, registry tools.ToolRegistry) *LLMAgent {
	t.Helper()
	agent, err := NewLLMAgent(LLMAgentConfig{
		ID:    "agent-1",
		Model: "gpt-4o-mini",
	}, role, provider, registry, zap.NewNop())
	require.NoError(t, err)
	return agent
}

func TestLLMAgentExecute(t *testing.T) {
	var captured *llm.ChatRequest
	provider := &mockProvider{
		completionFn: func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			captured = req
			return &llm.ChatResponse{
				Model: req.Model,
				Choices: []llm.ChatChoice{
					{Message: llm.Message{Role: llm.RoleAssistant, Content: "the report"}},
				},
			}, nil
		},
	}

	agent := newTestAgent(t, Role{
		Name:      "Insight Writer",
		Goal:      "Write the report",
		Backstory: "Ten years of campaign reporting.",
	}, provider, nil)

	result, err := agent.Execute(context.Background(), CrewTask{
		ID:          "report_task",
		Description: "Write the weekly report",
		Context:     "aggregated metrics here",
		Expected:    "A markdown report",
	})
	require.NoError(t, err)
	assert.Equal(t, "the report", result.Output)
	assert.Equal(t, "report_task", result.TaskID)

	require.NotNil(t, captured)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, llm.RoleSystem, captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "You are Insight Writer.")
	assert.Contains(t, captured.Messages[0].Content, "Your personal goal is: Write the report")
	assert.Contains(t, captured.Messages[1].Content, "Write the weekly report")
	assert.Contains(t, captured.Messages[1].Content, "aggregated metrics here")
	assert.Contains(t, captured.Messages[1].Content, "A markdown report")
}

func TestLLMAgentExecute_ProviderError(t *testing.T) {
	provider := &mockProvider{
		completionFn: func(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
			return nil, errors.New("upstream down")
		},
	}
	agent := newTestAgent(t, Role{Name: "Analyst"}, provider, nil)

	_, err := agent.Execute(context.Background(), CrewTask{ID: "t1", Description: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestLLMAgentExecute_EmptyResponse(t *testing.T) {
	provider := &mockProvider{
		completionFn: func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{Model: req.Model}, nil
		},
	}
	agent := newTestAgent(t, Role{Name: "Analyst"}, provider, nil)

	_, err := agent.Execute(context.Background(), CrewTask{ID: "t1", Description: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestLLMAgentWithTools(t *testing.T) {
	registry := tools.NewRegistry(zap.NewNop())
	var toolCalls int
	err := registry.Register("query_campaign_metrics",
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			toolCalls++
			return json.RawMessage(`{"metrics":[],"count":0}`), nil
		}, tools.ToolMetadata{
			Schema: llm.ToolSchema{Name: "query_campaign_metrics", Parameters: []byte(`{"type":"object"}`)},
		})
	require.NoError(t, err)

	var round int
	provider := &mockProvider{
		completionFn: func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			round++
			if round == 1 {
				return &llm.ChatResponse{
					Model: req.Model,
					Choices: []llm.ChatChoice{{
						FinishReason: "tool_calls",
						Message: llm.Message{
							Role: llm.RoleAssistant,
							ToolCalls: []llm.ToolCall{{
								ID:        "call-1",
								Name:      "query_campaign_metrics",
								Arguments: json.RawMessage(`{"time_period":"last_7_days"}`),
							}},
						},
					}},
				}, nil
			}
			return &llm.ChatResponse{
				Model: req.Model,
				Choices: []llm.ChatChoice{
					{Message: llm.Message{Role: llm.RoleAssistant, Content: "grounded answer"}},
				},
			}, nil
		},
	}

	agent := newTestAgent(t, Role{
		Name:  "Metrics Aggregator",
		Tools: []string{"query_campaign_metrics"},
	}, provider, registry)

	result, err := agent.Execute(context.Background(), CrewTask{ID: "t1", Description: "pull the data"})
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", result.Output)
	assert.Equal(t, 1, toolCalls)
	assert.Equal(t, 2, round)
}

func TestLLMAgentUnknownTool(t *testing.T) {
	registry := tools.NewRegistry(zap.NewNop())
	_, err := NewLLMAgent(LLMAgentConfig{ID: "a", Model: "gpt-4o-mini"},
		Role{Name: "Aggregator", Tools: []string{"missing_tool"}},
		&mockProvider{}, registry, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLLMAgentNegotiate(t *testing.T) {
	agent := newTestAgent(t, Role{Name: "Writer"}, &mockProvider{}, nil)

	res, err := agent.Negotiate(context.Background(), Proposal{Type: ProposalTypeDelegate})
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	res, err = agent.Negotiate(context.Background(), Proposal{Type: ProposalTypeInform})
	require.NoError(t, err)
	assert.False(t, res.Accepted)
}
