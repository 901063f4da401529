package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "test.db")

	st, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestOpenAndPing(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Ping(context.Background()))
	assert.NotNil(t, st.DB())
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = "oracle"
	_, err := Open(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestMigrateCreatesTables(t *testing.T) {
	st := newTestStore(t)

	for _, table := range []string{
		"campaign_configurations",
		"campaign_locations",
		"campaign_metrics",
		"display_master",
		"agent_conversations",
	} {
		assert.True(t, st.DB().Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestSeed(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Seed(ctx))

	var campaigns, displays, locations, metrics int64
	require.NoError(t, st.DB().Model(&CampaignConfiguration{}).Count(&campaigns).Error)
	require.NoError(t, st.DB().Model(&DisplayMaster{}).Count(&displays).Error)
	require.NoError(t, st.DB().Model(&CampaignLocation{}).Count(&locations).Error)
	require.NoError(t, st.DB().Model(&CampaignMetrics{}).Count(&metrics).Error)

	assert.EqualValues(t, 7, campaigns)
	assert.EqualValues(t, 5, displays)
	assert.EqualValues(t, 7, locations)
	// 30 days of hourly rows per campaign.
	assert.EqualValues(t, 7*30*24, metrics)
}

func TestSeedIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Seed(ctx))
	require.NoError(t, st.Seed(ctx))

	var campaigns int64
	require.NoError(t, st.DB().Model(&CampaignConfiguration{}).Count(&campaigns).Error)
	assert.EqualValues(t, 7, campaigns)
}

func TestSaveConversation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv := &AgentConversation{
		AgentType:     "performance_crew",
		UserQuery:     "Show me the top 5 performing campaigns",
		AgentResponse: datatypes.JSON(`{"final_output":"report"}`),
	}
	require.NoError(t, st.SaveConversation(ctx, conv))

	// Identifier and timestamp are filled in.
	assert.NotEqual(t, uuid.Nil, conv.ConversationID)
	assert.False(t, conv.CreatedAt.IsZero())

	var loaded AgentConversation
	require.NoError(t, st.DB().First(&loaded, "conversation_id = ?", conv.ConversationID).Error)
	assert.Equal(t, conv.UserQuery, loaded.UserQuery)
}

func TestSaveConversationKeepsExistingID(t *testing.T) {
	st := newTestStore(t)
	id := uuid.New()

	conv := &AgentConversation{
		ConversationID: id,
		AgentType:      "performance_crew",
		UserQuery:      "q",
	}
	require.NoError(t, st.SaveConversation(context.Background(), conv))
	assert.Equal(t, id, conv.ConversationID)
}
