package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hypermindz/perfcrew/store"
)

const dateLayout = "2006-01-02"

// campaignTotals is one campaign's summed metrics over a window.
type campaignTotals struct {
	CampaignID     string  `gorm:"column:campaign_id"`
	CampaignName   string  `gorm:"column:campaign_name"`
	TotalBudget    float64 `gorm:"column:total_budget"`
	Impressions    int64   `gorm:"column:impressions"`
	Clicks         int64   `gorm:"column:clicks"`
	Spend          float64 `gorm:"column:spend"`
	EngagementRate float64 `gorm:"column:engagement_rate"`
	CPM            float64 `gorm:"column:cpm"`
}

// QueryCampaignMetrics returns metric rows joined with campaign names,
// optionally filtered by campaign, date range and field list.
func (s *Service) QueryCampaignMetrics(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		CampaignID string   `json:"campaign_id"`
		StartDate  string   `json:"start_date"`
		EndDate    string   `json:"end_date"`
		Metrics    []string `json:"metrics"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}

	type row struct {
		CampaignID      string    `gorm:"column:campaign_id"`
		CampaignName    string    `gorm:"column:campaign_name"`
		Timestamp       time.Time `gorm:"column:timestamp"`
		Impressions     int64     `gorm:"column:impressions"`
		Clicks          int64     `gorm:"column:clicks"`
		Reach           int64     `gorm:"column:reach"`
		Frequency       float64   `gorm:"column:frequency"`
		EngagementRate  float64   `gorm:"column:engagement_rate"`
		SpendHourly     float64   `gorm:"column:spend_hourly"`
		CostPerThousand float64   `gorm:"column:cost_per_thousand"`
	}

	q := s.store.DB().WithContext(ctx).
		Table("campaign_metrics").
		Select(`campaign_metrics.campaign_id, campaign_configurations.campaign_name,
			campaign_metrics.timestamp, campaign_metrics.impressions, campaign_metrics.clicks,
			campaign_metrics.reach, campaign_metrics.frequency, campaign_metrics.engagement_rate,
			campaign_metrics.spend_hourly, campaign_metrics.cost_per_thousand`).
		Joins("JOIN campaign_configurations ON campaign_metrics.campaign_id = campaign_configurations.campaign_id")

	if in.CampaignID != "" {
		q = q.Where("campaign_metrics.campaign_id = ?", in.CampaignID)
	}
	if in.StartDate != "" {
		start, err := time.Parse(dateLayout, in.StartDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start_date %q: %w", in.StartDate, err)
		}
		q = q.Where("campaign_metrics.timestamp >= ?", start)
	}
	if in.EndDate != "" {
		end, err := time.Parse(dateLayout, in.EndDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end_date %q: %w", in.EndDate, err)
		}
		q = q.Where("campaign_metrics.timestamp <= ?", end)
	}

	var rows []row
	if err := q.Order("campaign_metrics.timestamp").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}

	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		data := map[string]any{
			"campaign_id":     r.CampaignID,
			"campaign_name":   r.CampaignName,
			"timestamp":       r.Timestamp.Format(time.RFC3339),
			"impressions":     r.Impressions,
			"clicks":          r.Clicks,
			"reach":           r.Reach,
			"frequency":       r.Frequency,
			"engagement_rate": r.EngagementRate,
			"spend":           r.SpendHourly,
			"cpm":             r.CostPerThousand,
		}
		if len(in.Metrics) > 0 {
			data = filterFields(data, in.Metrics)
		}
		out = append(out, data)
	}

	return marshalResult(map[string]any{
		"metrics": out,
		"count":   len(out),
	})
}

// AggregatePerformanceData ranks campaigns by a summed or averaged metric
// over a named time window and attaches portfolio totals.
func (s *Service) AggregatePerformanceData(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	in := struct {
		AggregationType string `json:"aggregation_type"`
		Metric          string `json:"metric"`
		Limit           int    `json:"limit"`
		TimePeriod      string `json:"time_period"`
	}{
		AggregationType: "top_n",
		Metric:          "impressions",
		Limit:           10,
		TimePeriod:      "last_7_days",
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}

	start, end := s.timeWindow(in.TimePeriod)

	metricExpr, ok := map[string]string{
		"impressions":     "SUM(campaign_metrics.impressions)",
		"clicks":          "SUM(campaign_metrics.clicks)",
		"spend":           "SUM(campaign_metrics.spend_hourly)",
		"engagement_rate": "AVG(campaign_metrics.engagement_rate)",
		"cpm":             "AVG(campaign_metrics.cost_per_thousand)",
	}[in.Metric]
	if !ok {
		in.Metric = "impressions"
		metricExpr = "SUM(campaign_metrics.impressions)"
	}

	order := "ranked DESC"
	if in.AggregationType == "bottom_n" {
		order = "ranked ASC"
	}

	type aggRow struct {
		campaignTotals
		Ranked float64 `gorm:"column:ranked"`
	}
	var rows []aggRow
	err := s.store.DB().WithContext(ctx).
		Table("campaign_configurations").
		Select(fmt.Sprintf(`campaign_configurations.campaign_id,
			campaign_configurations.campaign_name,
			campaign_configurations.total_budget,
			%s AS ranked,
			SUM(campaign_metrics.impressions) AS impressions,
			SUM(campaign_metrics.clicks) AS clicks,
			SUM(campaign_metrics.spend_hourly) AS spend`, metricExpr)).
		Joins("JOIN campaign_metrics ON campaign_configurations.campaign_id = campaign_metrics.campaign_id").
		Where("campaign_metrics.timestamp >= ? AND campaign_metrics.timestamp <= ?", start, end).
		Group("campaign_configurations.campaign_id, campaign_configurations.campaign_name, campaign_configurations.total_budget").
		Order(order).
		Limit(in.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate performance data: %w", err)
	}

	campaigns := make([]map[string]any, 0, len(rows))
	var totalImpressions, totalClicks int64
	var totalSpend float64
	for _, r := range rows {
		ctr := 0.0
		if r.Impressions > 0 {
			ctr = float64(r.Clicks) / float64(r.Impressions) * 100
		}
		campaigns = append(campaigns, map[string]any{
			"campaign_id":       r.CampaignID,
			"campaign_name":     r.CampaignName,
			"total_budget":      r.TotalBudget,
			in.Metric:           r.Ranked,
			"total_impressions": r.Impressions,
			"total_clicks":      r.Clicks,
			"total_spend":       r.Spend,
			"ctr":               ctr,
		})
		totalImpressions += r.Impressions
		totalClicks += r.Clicks
		totalSpend += r.Spend
	}

	var aggregated map[string]any
	if len(campaigns) > 0 {
		avgCTR := 0.0
		if totalImpressions > 0 {
			avgCTR = float64(totalClicks) / float64(totalImpressions) * 100
		}
		aggregated = map[string]any{
			"total_campaigns":   len(campaigns),
			"total_impressions": totalImpressions,
			"total_clicks":      totalClicks,
			"total_spend":       totalSpend,
			"avg_ctr":           avgCTR,
			"time_period":       in.TimePeriod,
			"date_range": map[string]string{
				"start": start.Format(time.RFC3339),
				"end":   end.Format(time.RFC3339),
			},
		}
	} else {
		aggregated = map[string]any{
			"total_campaigns": 0,
			"message":         "No data found for the specified period",
		}
	}

	return marshalResult(map[string]any{
		"campaigns":          campaigns,
		"aggregated_metrics": aggregated,
		"aggregation_type":   in.AggregationType,
		"sorted_by":          in.Metric,
	})
}

// CalculateROIMetrics computes per-campaign spend efficiency and a
// portfolio rollup.
func (s *Service) CalculateROIMetrics(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		CampaignIDs []string `json:"campaign_ids"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}

	q := s.store.DB().WithContext(ctx).
		Table("campaign_configurations").
		Select(`campaign_configurations.campaign_id,
			campaign_configurations.campaign_name,
			campaign_configurations.total_budget,
			SUM(campaign_metrics.impressions) AS impressions,
			SUM(campaign_metrics.clicks) AS clicks,
			SUM(campaign_metrics.spend_hourly) AS spend`).
		Joins("JOIN campaign_metrics ON campaign_configurations.campaign_id = campaign_metrics.campaign_id").
		Group("campaign_configurations.campaign_id, campaign_configurations.campaign_name, campaign_configurations.total_budget")

	if len(in.CampaignIDs) > 0 {
		q = q.Where("campaign_configurations.campaign_id IN ?", in.CampaignIDs)
	}

	var rows []campaignTotals
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to calculate ROI metrics: %w", err)
	}

	analysis := make([]map[string]any, 0, len(rows))
	var totalSpend, totalBudget float64
	for _, r := range rows {
		utilization := 0.0
		if r.TotalBudget > 0 {
			utilization = r.Spend / r.TotalBudget * 100
		}
		cpm, ctr := 0.0, 0.0
		if r.Impressions > 0 {
			cpm = r.Spend / float64(r.Impressions) * 1000
			ctr = float64(r.Clicks) / float64(r.Impressions) * 100
		}
		profitability := "Not Profitable"
		// Without revenue attribution, spend within budget counts as healthy.
		if utilization > 0 && utilization <= 100 {
			profitability = "Profitable"
		}
		analysis = append(analysis, map[string]any{
			"campaign_id":        r.CampaignID,
			"campaign_name":      r.CampaignName,
			"budget":             r.TotalBudget,
			"spend":              r.Spend,
			"budget_utilization": utilization,
			"impressions":        r.Impressions,
			"clicks":             r.Clicks,
			"cpm":                cpm,
			"ctr":                ctr,
			"profitability":      profitability,
		})
		totalSpend += r.Spend
		totalBudget += r.TotalBudget
	}

	var portfolio map[string]any
	if len(analysis) > 0 {
		efficiency := 0.0
		if totalBudget > 0 {
			efficiency = totalSpend / totalBudget * 100
		}
		portfolio = map[string]any{
			"total_campaigns":   len(analysis),
			"total_budget":      totalBudget,
			"total_spend":       totalSpend,
			"budget_efficiency": efficiency,
		}
	} else {
		portfolio = map[string]any{"message": "No campaigns found for ROI analysis"}
	}

	return marshalResult(map[string]any{
		"roi_analysis":      analysis,
		"portfolio_metrics": portfolio,
	})
}

// defaultComparisonMetrics is the metric set used when the caller does not
// name one.
var defaultComparisonMetrics = []string{"impressions", "clicks", "ctr", "spend", "engagement_rate"}

// lowerIsBetter marks metrics where the smallest positive value wins.
var lowerIsBetter = map[string]bool{"cpa": true, "cpm": true}

// CompareCampaigns builds a side-by-side comparison and names the best
// performer per metric.
func (s *Service) CompareCampaigns(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		CampaignIDs []string `json:"campaign_ids"`
		Metrics     []string `json:"metrics"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if len(in.CampaignIDs) == 0 {
		return nil, fmt.Errorf("campaign_ids is required")
	}
	metrics := in.Metrics
	if len(metrics) == 0 {
		metrics = defaultComparisonMetrics
	}

	comparison := make([]map[string]any, 0, len(in.CampaignIDs))
	for _, id := range in.CampaignIDs {
		var config store.CampaignConfiguration
		err := s.store.DB().WithContext(ctx).
			Where("campaign_id = ?", id).
			First(&config).Error
		if err != nil {
			// Unknown campaigns are skipped, matching the listing tools.
			continue
		}

		var totals struct {
			Impressions    int64   `gorm:"column:impressions"`
			Clicks         int64   `gorm:"column:clicks"`
			Spend          float64 `gorm:"column:spend"`
			EngagementRate float64 `gorm:"column:engagement_rate"`
			CPM            float64 `gorm:"column:cpm"`
		}
		err = s.store.DB().WithContext(ctx).
			Table("campaign_metrics").
			Select(`SUM(impressions) AS impressions,
				SUM(clicks) AS clicks,
				SUM(spend_hourly) AS spend,
				AVG(engagement_rate) AS engagement_rate,
				AVG(cost_per_thousand) AS cpm`).
			Where("campaign_id = ?", id).
			Scan(&totals).Error
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate campaign %s: %w", id, err)
		}

		values := map[string]float64{
			"impressions":     float64(totals.Impressions),
			"clicks":          float64(totals.Clicks),
			"spend":           totals.Spend,
			"engagement_rate": totals.EngagementRate,
			"cpm":             totals.CPM,
		}
		if totals.Impressions > 0 {
			values["ctr"] = float64(totals.Clicks) / float64(totals.Impressions) * 100
		} else {
			values["ctr"] = 0
		}

		row := map[string]any{
			"campaign_id":   config.CampaignID.String(),
			"campaign_name": config.CampaignName,
			"budget":        config.TotalBudget,
			"start_date":    config.StartDate.Format(time.RFC3339),
			"end_date":      config.EndDate.Format(time.RFC3339),
		}
		for _, m := range metrics {
			row[m] = values[m] // unknown metrics compare as zero
		}
		comparison = append(comparison, row)
	}

	bestPerformers := map[string]any{}
	if len(comparison) > 1 {
		for _, m := range metrics {
			name, value, ok := bestPerformer(comparison, m)
			if ok {
				bestPerformers[m] = map[string]any{"campaign": name, "value": value}
			}
		}
	}

	return marshalResult(map[string]any{
		"comparison":       comparison,
		"best_performers":  bestPerformers,
		"metrics_compared": metrics,
	})
}

// bestPerformer picks the winning campaign for one metric. Cost metrics
// prefer the lowest positive value; everything else prefers the highest.
func bestPerformer(rows []map[string]any, metric string) (string, float64, bool) {
	var bestName string
	var bestValue float64
	found := false

	for _, row := range rows {
		v, ok := row[metric].(float64)
		if !ok {
			continue
		}
		if lowerIsBetter[metric] {
			if v <= 0 {
				continue
			}
			if !found || v < bestValue {
				bestName, _ = row["campaign_name"].(string)
				bestValue = v
				found = true
			}
		} else {
			if !found || v > bestValue {
				bestName, _ = row["campaign_name"].(string)
				bestValue = v
				found = true
			}
		}
	}
	return bestName, bestValue, found
}

// GetTimeSeriesData buckets one campaign's metric by hour, day or week and
// reports the trend from the first bucket to the last.
func (s *Service) GetTimeSeriesData(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	in := struct {
		CampaignID  string `json:"campaign_id"`
		Metric      string `json:"metric"`
		Granularity string `json:"granularity"`
	}{
		Metric:      "impressions",
		Granularity: "daily",
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if in.CampaignID == "" {
		return nil, fmt.Errorf("campaign_id is required")
	}

	var rows []store.CampaignMetrics
	err := s.store.DB().WithContext(ctx).
		Where("campaign_id = ?", in.CampaignID).
		Order("timestamp").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query time series: %w", err)
	}

	// Bucketing happens here rather than in SQL so postgres and sqlite
	// behave identically.
	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[time.Time]*bucket)
	average := in.Metric == "engagement_rate"
	for _, r := range rows {
		key := truncatePeriod(r.Timestamp, in.Granularity)
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		switch in.Metric {
		case "clicks":
			b.sum += float64(r.Clicks)
		case "spend":
			b.sum += r.SpendHourly
		case "engagement_rate":
			b.sum += r.EngagementRate
		default:
			b.sum += float64(r.Impressions)
		}
		b.count++
	}

	periods := make([]time.Time, 0, len(buckets))
	for p := range buckets {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	type point struct {
		Period string  `json:"period"`
		Value  float64 `json:"value"`
	}
	series := make([]point, 0, len(periods))
	for _, p := range periods {
		b := buckets[p]
		v := b.sum
		if average && b.count > 0 {
			v = b.sum / float64(b.count)
		}
		series = append(series, point{Period: p.Format(time.RFC3339), Value: v})
	}

	direction := "insufficient data"
	change := 0.0
	if len(series) > 1 {
		first, last := series[0].Value, series[len(series)-1].Value
		if first > 0 {
			change = (last - first) / first * 100
			if change > 0 {
				direction = "increasing"
			} else {
				direction = "decreasing"
			}
		} else {
			direction = "stable"
		}
	}

	name := "Unknown"
	var config store.CampaignConfiguration
	if err := s.store.DB().WithContext(ctx).Where("campaign_id = ?", in.CampaignID).First(&config).Error; err == nil {
		name = config.CampaignName
	}

	return marshalResult(map[string]any{
		"campaign_id":   in.CampaignID,
		"campaign_name": name,
		"metric":        in.Metric,
		"granularity":   in.Granularity,
		"time_series":   series,
		"trend": map[string]any{
			"direction":         direction,
			"percentage_change": change,
		},
	})
}

// timeWindow translates a named period into a concrete range.
func (s *Service) timeWindow(period string) (time.Time, time.Time) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch period {
	case "today":
		return midnight, now
	case "yesterday":
		return midnight.AddDate(0, 0, -1), midnight
	case "last_30_days":
		return now.AddDate(0, 0, -30), now
	case "month_to_date":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), now
	default: // last_7_days
		return now.AddDate(0, 0, -7), now
	}
}

// truncatePeriod floors a timestamp to its bucket start. Weeks start on
// Monday, matching date_trunc('week', ...) in postgres.
func truncatePeriod(ts time.Time, granularity string) time.Time {
	ts = ts.UTC()
	switch granularity {
	case "hourly":
		return ts.Truncate(time.Hour)
	case "weekly":
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default: // daily
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func unmarshalArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func marshalResult(v any) (json.RawMessage, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return data, nil
}

func filterFields(data map[string]any, keep []string) map[string]any {
	always := map[string]bool{"campaign_id": true, "campaign_name": true, "timestamp": true}
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if always[k] || keepSet[k] {
			out[k] = v
		}
	}
	return out
}
