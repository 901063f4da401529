package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hypermindz/perfcrew/llm"
	"github.com/hypermindz/perfcrew/llm/tokenizer"
	"github.com/hypermindz/perfcrew/llm/tools"
)

// LLMAgentConfig configures one model-backed crew agent.
type LLMAgentConfig struct {
	ID            string
	Model         string
	Temperature   float32
	MaxTokens     int
	MaxIterations int // tool loop bound, default 10
}

// LLMAgent is a CrewAgent driving an LLM provider. Agents whose role lists
// tools run the tool loop; the rest issue a single completion.
type LLMAgent struct {
	id       string
	role     Role
	provider llm.Provider
	react    *tools.ReActExecutor
	schemas  []llm.ToolSchema
	counter  tokenizer.Tokenizer
	logger   *zap.Logger

	model       string
	temperature float32
	maxTokens   int
}

var _ CrewAgent = (*LLMAgent)(nil)

// NewLLMAgent builds an agent for a role. Every tool the role names must
// already be registered; a missing tool is a build-time error.
func NewLLMAgent(cfg LLMAgentConfig, role Role, provider llm.Provider, registry tools.ToolRegistry, logger *zap.Logger) (*LLMAgent, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("agent id is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("agent %s: provider is required", cfg.ID)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	agent := &LLMAgent{
		id:          cfg.ID,
		role:        role,
		provider:    provider,
		counter:     tokenizer.GetTokenizerOrEstimator(cfg.Model),
		logger:      logger.With(zap.String("component", "agent"), zap.String("agent", cfg.ID)),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}

	if len(role.Tools) > 0 {
		if registry == nil {
			return nil, fmt.Errorf("agent %s: role lists tools but no registry given", cfg.ID)
		}
		schemas := make([]llm.ToolSchema, 0, len(role.Tools))
		for _, name := range role.Tools {
			_, meta, err := registry.Get(name)
			if err != nil {
				return nil, fmt.Errorf("agent %s: %w", cfg.ID, err)
			}
			schemas = append(schemas, meta.Schema)
		}
		agent.schemas = schemas

		executor := tools.NewExecutor(registry, logger)
		agent.react = tools.NewReActExecutor(provider, executor, tools.ReActConfig{
			MaxIterations: cfg.MaxIterations,
		}, logger)
	}

	return agent, nil
}

// ID returns the agent identifier.
func (a *LLMAgent) ID() string { return a.id }

// Execute runs one task to completion and returns its text output.
func (a *LLMAgent) Execute(ctx context.Context, task CrewTask) (*TaskResult, error) {
	start := time.Now()

	req := &llm.ChatRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: a.systemPrompt()},
			{Role: llm.RoleUser, Content: a.taskPrompt(task)},
		},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
		Tools:       a.schemas,
	}

	promptTokens := a.countRequest(req)
	a.logger.Debug("executing task",
		zap.String("task", task.ID),
		zap.Int("prompt_tokens_estimate", promptTokens))

	var resp *llm.ChatResponse
	var err error
	if a.react != nil {
		resp, _, err = a.react.Execute(ctx, req)
	} else {
		resp, err = a.provider.Completion(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.id, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("agent %s: empty response", a.id)
	}

	output := resp.Choices[0].Message.Content
	a.logger.Info("task completed",
		zap.String("task", task.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))

	return &TaskResult{
		TaskID:   task.ID,
		Output:   output,
		Tokens:   resp.Usage.TotalTokens,
		Duration: time.Since(start),
	}, nil
}

// Negotiate accepts delegation proposals; other proposal types are
// acknowledged without acceptance.
func (a *LLMAgent) Negotiate(_ context.Context, proposal Proposal) (*NegotiationResult, error) {
	if proposal.Type == ProposalTypeDelegate {
		return &NegotiationResult{
			Accepted: true,
			Response: fmt.Sprintf("%s accepts the task", a.id),
		}, nil
	}
	return &NegotiationResult{Accepted: false, Response: "noted"}, nil
}

func (a *LLMAgent) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", a.role.Name)
	if a.role.Backstory != "" {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(a.role.Backstory))
	}
	if a.role.Goal != "" {
		fmt.Fprintf(&b, "\n\nYour personal goal is: %s", strings.TrimSpace(a.role.Goal))
	}
	if len(a.schemas) > 0 {
		b.WriteString("\n\nUse the available tools to ground every number you report in real data.")
	}
	return b.String()
}

func (a *LLMAgent) taskPrompt(task CrewTask) string {
	var b strings.Builder
	b.WriteString("Current task:\n")
	b.WriteString(strings.TrimSpace(task.Description))
	if task.Context != "" {
		b.WriteString("\n\nThis is the context you are working with:\n")
		b.WriteString(task.Context)
	}
	if task.Expected != "" {
		b.WriteString("\n\nThis is the expected output of your final answer:\n")
		b.WriteString(strings.TrimSpace(task.Expected))
		b.WriteString("\nReturn the actual complete content as the final answer, not a summary.")
	}
	return b.String()
}

func (a *LLMAgent) countRequest(req *llm.ChatRequest) int {
	msgs := make([]tokenizer.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = tokenizer.Message{Role: string(m.Role), Content: m.Content}
	}
	count, err := a.counter.CountMessages(msgs)
	if err != nil {
		return 0
	}
	return count
}
