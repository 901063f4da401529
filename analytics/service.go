// Package analytics implements the campaign-performance tools exposed to
// the metrics agent: metric queries, aggregation, ROI, campaign comparison
// and time-series trends over the campaign database.
package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hypermindz/perfcrew/llm"
	"github.com/hypermindz/perfcrew/llm/tools"
	"github.com/hypermindz/perfcrew/store"
)

// Service holds the store handle the tools query.
type Service struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time // overridable in tests
}

// NewService creates the analytics tool service.
func NewService(st *store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		logger: logger.With(zap.String("component", "analytics")),
		now:    time.Now,
	}
}

type toolDef struct {
	name        string
	description string
	parameters  string
	fn          tools.ToolFunc
	timeout     time.Duration
	rateLimit   *tools.RateLimitConfig
}

// Register adds every analytics tool to the registry with its JSON schema,
// timeout and call budget.
func (s *Service) Register(registry tools.ToolRegistry) error {
	defs := []toolDef{
		{
			name:        "query_campaign_metrics",
			description: "Query performance metrics for a specific campaign or all campaigns. Returns metric rows joined with campaign names.",
			parameters: `{
				"type": "object",
				"properties": {
					"campaign_id": {"type": "string", "description": "UUID of a specific campaign"},
					"start_date": {"type": "string", "description": "Start date, YYYY-MM-DD"},
					"end_date": {"type": "string", "description": "End date, YYYY-MM-DD"},
					"metrics": {"type": "array", "items": {"type": "string"}, "description": "Metric fields to keep in each row"}
				}
			}`,
			fn:        s.QueryCampaignMetrics,
			timeout:   15 * time.Second,
			rateLimit: &tools.RateLimitConfig{MaxCalls: 30, Window: time.Minute},
		},
		{
			name:        "aggregate_performance_data",
			description: "Aggregate performance across campaigns: top_n or bottom_n by a metric over a time period, with portfolio totals.",
			parameters: `{
				"type": "object",
				"properties": {
					"aggregation_type": {"type": "string", "enum": ["top_n", "bottom_n"], "description": "Sort direction"},
					"metric": {"type": "string", "enum": ["impressions", "clicks", "spend", "engagement_rate", "cpm"], "description": "Metric to rank by"},
					"limit": {"type": "integer", "description": "Number of campaigns to return"},
					"time_period": {"type": "string", "enum": ["today", "yesterday", "last_7_days", "last_30_days", "month_to_date"], "description": "Analysis window"}
				}
			}`,
			fn:        s.AggregatePerformanceData,
			timeout:   15 * time.Second,
			rateLimit: &tools.RateLimitConfig{MaxCalls: 30, Window: time.Minute},
		},
		{
			name:        "calculate_roi_metrics",
			description: "Calculate ROI metrics per campaign: spend, budget utilization, CPM, CTR and profitability, plus portfolio totals.",
			parameters: `{
				"type": "object",
				"properties": {
					"campaign_ids": {"type": "array", "items": {"type": "string"}, "description": "Campaign UUIDs to analyze; all campaigns when omitted"}
				}
			}`,
			fn:        s.CalculateROIMetrics,
			timeout:   15 * time.Second,
			rateLimit: &tools.RateLimitConfig{MaxCalls: 30, Window: time.Minute},
		},
		{
			name:        "compare_campaigns",
			description: "Compare metrics side by side across campaigns and name the best performer per metric.",
			parameters: `{
				"type": "object",
				"properties": {
					"campaign_ids": {"type": "array", "items": {"type": "string"}, "description": "Campaign UUIDs to compare"},
					"metrics": {"type": "array", "items": {"type": "string"}, "description": "Metrics to compare; a default set is used when omitted"}
				},
				"required": ["campaign_ids"]
			}`,
			fn:        s.CompareCampaigns,
			timeout:   15 * time.Second,
			rateLimit: &tools.RateLimitConfig{MaxCalls: 30, Window: time.Minute},
		},
		{
			name:        "get_time_series_data",
			description: "Get one campaign's metric over time in hourly, daily or weekly buckets, with the overall trend direction.",
			parameters: `{
				"type": "object",
				"properties": {
					"campaign_id": {"type": "string", "description": "Campaign UUID"},
					"metric": {"type": "string", "enum": ["impressions", "clicks", "spend", "engagement_rate"], "description": "Metric to track"},
					"granularity": {"type": "string", "enum": ["hourly", "daily", "weekly"], "description": "Bucket size, daily by default"}
				},
				"required": ["campaign_id"]
			}`,
			fn:        s.GetTimeSeriesData,
			timeout:   15 * time.Second,
			rateLimit: &tools.RateLimitConfig{MaxCalls: 30, Window: time.Minute},
		},
	}

	for _, def := range defs {
		meta := tools.ToolMetadata{
			Schema: llm.ToolSchema{
				Name:        def.name,
				Description: def.description,
				Parameters:  json.RawMessage(def.parameters),
			},
			Timeout:   def.timeout,
			RateLimit: def.rateLimit,
		}
		if err := registry.Register(def.name, def.fn, meta); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", def.name, err)
		}
	}

	s.logger.Info("analytics tools registered", zap.Int("count", len(defs)))
	return nil
}

// ToolNames lists the tool names this service registers, in registration
// order. The roster loader uses it to validate agent tool references.
func ToolNames() []string {
	return []string{
		"query_campaign_metrics",
		"aggregate_performance_data",
		"calculate_roi_metrics",
		"compare_campaigns",
		"get_time_series_data",
	}
}
