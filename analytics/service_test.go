package analytics

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hypermindz/perfcrew/llm/tools"
)

func TestRegister(t *testing.T) {
	svc := newTestService(t)
	registry := tools.NewRegistry(zap.NewNop())
	require.NoError(t, svc.Register(registry))

	for _, name := range ToolNames() {
		assert.True(t, registry.Has(name), "tool %s not registered", name)
	}
	assert.Len(t, registry.List(), len(ToolNames()))
}

func TestRegisteredToolRunsThroughExecutor(t *testing.T) {
	svc := newTestService(t)
	registry := tools.NewRegistry(zap.NewNop())
	require.NoError(t, svc.Register(registry))

	fn, meta, err := registry.Get("aggregate_performance_data")
	require.NoError(t, err)
	assert.NotEmpty(t, meta.Schema.Description)

	raw, err := fn(context.Background(), json.RawMessage(`{"metric":"spend"}`))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "spend", out["sorted_by"])
}
