package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hypermindz/perfcrew/llm"
)

func echoTool(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	return args, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	require.NoError(t, r.Register("echo", echoTool, ToolMetadata{}))
	assert.True(t, r.Has("echo"))

	fn, meta, err := r.Get("echo")
	require.NoError(t, err)
	assert.NotNil(t, fn)
	assert.Equal(t, "echo", meta.Schema.Name)
	assert.Equal(t, 30*time.Second, meta.Timeout)

	err = r.Register("echo", echoTool, ToolMetadata{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryNameMismatch(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	err := r.Register("echo", echoTool, ToolMetadata{
		Schema: llm.ToolSchema{Name: "other"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name mismatch")
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register("echo", echoTool, ToolMetadata{}))
	require.NoError(t, r.Unregister("echo"))
	assert.False(t, r.Has("echo"))

	require.Error(t, r.Unregister("echo"))
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register("a", echoTool, ToolMetadata{}))
	require.NoError(t, r.Register("b", echoTool, ToolMetadata{}))
	assert.Len(t, r.List(), 2)
}

func TestExecuteOne(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register("echo", echoTool, ToolMetadata{}))
	e := NewExecutor(r, zap.NewNop())

	result := e.ExecuteOne(context.Background(), llm.ToolCall{
		ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"x":1}`),
	})
	assert.Empty(t, result.Error)
	assert.JSONEq(t, `{"x":1}`, string(result.Result))
	assert.Equal(t, "c1", result.ToolCallID)
}

func TestExecuteOneUnknownTool(t *testing.T) {
	e := NewExecutor(NewRegistry(zap.NewNop()), zap.NewNop())

	result := e.ExecuteOne(context.Background(), llm.ToolCall{ID: "c1", Name: "ghost"})
	assert.Contains(t, result.Error, "tool not found")
}

func TestExecuteOneInvalidArguments(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register("echo", echoTool, ToolMetadata{}))
	e := NewExecutor(r, zap.NewNop())

	result := e.ExecuteOne(context.Background(), llm.ToolCall{
		ID: "c1", Name: "echo", Arguments: json.RawMessage(`{not json`),
	})
	assert.Contains(t, result.Error, "invalid arguments")
}

func TestExecuteOneToolError(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register("fail", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("database unavailable")
	}, ToolMetadata{}))
	e := NewExecutor(r, zap.NewNop())

	result := e.ExecuteOne(context.Background(), llm.ToolCall{ID: "c1", Name: "fail"})
	assert.Equal(t, "database unavailable", result.Error)
}

func TestExecuteOneTimeout(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register("slow", func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		select {
		case <-time.After(time.Second):
			return json.RawMessage(`{}`), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, ToolMetadata{Timeout: 10 * time.Millisecond}))
	e := NewExecutor(r, zap.NewNop())

	result := e.ExecuteOne(context.Background(), llm.ToolCall{ID: "c1", Name: "slow"})
	assert.Contains(t, result.Error, "timeout")
}

func TestExecuteOneRateLimit(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register("limited", echoTool, ToolMetadata{
		RateLimit: &RateLimitConfig{MaxCalls: 2, Window: time.Hour},
	}))
	e := NewExecutor(r, zap.NewNop())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		result := e.ExecuteOne(ctx, llm.ToolCall{Name: "limited", Arguments: json.RawMessage(`{}`)})
		require.Empty(t, result.Error)
	}

	result := e.ExecuteOne(ctx, llm.ToolCall{Name: "limited", Arguments: json.RawMessage(`{}`)})
	assert.Contains(t, result.Error, "rate limit exceeded")
}

func TestExecuteParallel(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	var running, peak int32
	require.NoError(t, r.Register("track", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return json.RawMessage(`{}`), nil
	}, ToolMetadata{}))
	e := NewExecutor(r, zap.NewNop())

	calls := []llm.ToolCall{
		{ID: "c1", Name: "track"},
		{ID: "c2", Name: "track"},
		{ID: "c3", Name: "track"},
	}
	results := e.Execute(context.Background(), calls)

	require.Len(t, results, 3)
	for i, result := range results {
		assert.Equal(t, calls[i].ID, result.ToolCallID, "results keep call order")
		assert.Empty(t, result.Error)
	}
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1), "calls overlap")
}

func TestExecuteMixedResults(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register("ok", echoTool, ToolMetadata{}))
	require.NoError(t, r.Register("bad", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("boom")
	}, ToolMetadata{}))
	e := NewExecutor(r, zap.NewNop())

	results := e.Execute(context.Background(), []llm.ToolCall{
		{ID: "c1", Name: "ok", Arguments: json.RawMessage(`{}`)},
		{ID: "c2", Name: "bad"},
	})

	assert.Empty(t, results[0].Error)
	assert.Equal(t, "boom", results[1].Error)
}
