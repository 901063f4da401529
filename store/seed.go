package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// seedCampaign describes one demo campaign with its baseline hourly performance.
type seedCampaign struct {
	name            string
	budget          float64
	status          string
	baseImpressions int64
	baseClicks      int64
	baseSpend       float64
	attention       float64
}

var seedCampaigns = []seedCampaign{
	{"Summer Brand Awareness", 50000, "active", 1800, 54, 42, 0.72},
	{"Downtown Transit Takeover", 35000, "active", 2400, 38, 58, 0.61},
	{"Holiday Retail Push", 80000, "active", 3100, 96, 75, 0.78},
	{"Airport Premium Displays", 120000, "active", 1500, 22, 90, 0.84},
	{"Gym Network Q3", 18000, "active", 900, 31, 16, 0.66},
	{"Campus Back-to-School", 22000, "active", 1250, 47, 20, 0.58},
	{"Stadium Season Sponsorship", 95000, "paused", 2800, 41, 82, 0.7},
}

var seedDisplays = []DisplayMaster{
	{DisplayID: "DSP-001", DisplayName: "Times Square North", VenueName: "One Times Square", VenueType: "billboard", City: "New York", State: "NY", DailyImpressions: 120000, WeeklyImpressions: 840000, PricePerWeek: 15000, ScreenType: "LED"},
	{DisplayID: "DSP-002", DisplayName: "Union Station Concourse", VenueName: "Union Station", VenueType: "transit", City: "Washington", State: "DC", DailyImpressions: 45000, WeeklyImpressions: 315000, PricePerWeek: 4200, ScreenType: "LCD"},
	{DisplayID: "DSP-003", DisplayName: "Westfield Mall Atrium", VenueName: "Westfield Valley Fair", VenueType: "retail", City: "San Jose", State: "CA", DailyImpressions: 30000, WeeklyImpressions: 210000, PricePerWeek: 2800, ScreenType: "LED"},
	{DisplayID: "DSP-004", DisplayName: "SFO Terminal 2 Gates", VenueName: "San Francisco International", VenueType: "airport", City: "San Francisco", State: "CA", DailyImpressions: 60000, WeeklyImpressions: 420000, PricePerWeek: 9500, ScreenType: "LED"},
	{DisplayID: "DSP-005", DisplayName: "Equinox Lobby Network", VenueName: "Equinox Hudson Yards", VenueType: "gym", City: "New York", State: "NY", DailyImpressions: 8000, WeeklyImpressions: 56000, PricePerWeek: 900, ScreenType: "LCD"},
}

// Seed populates the database with demo campaigns, displays and thirty days
// of hourly metrics. It is idempotent: an already seeded database is left
// untouched.
func (s *Store) Seed(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&CampaignConfiguration{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check existing data: %w", err)
	}
	if count > 0 {
		s.logger.Info("database already seeded", zap.Int64("campaigns", count))
		return nil
	}

	rng := rand.New(rand.NewSource(42))
	now := time.Now().UTC().Truncate(time.Hour)
	start := now.AddDate(0, 0, -30)

	for _, d := range seedDisplays {
		d.CreatedAt = start
		d.UpdatedAt = start
		if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
			return fmt.Errorf("failed to seed display %s: %w", d.DisplayID, err)
		}
	}

	for i, sc := range seedCampaigns {
		campaign := CampaignConfiguration{
			CampaignID:   uuid.New(),
			CampaignName: sc.name,
			TotalBudget:  sc.budget,
			StartDate:    start,
			EndDate:      now.AddDate(0, 0, 30),
			Status:       sc.status,
			CreatedAt:    start,
			UpdatedAt:    start,
		}
		cfg, _ := json.Marshal(map[string]any{"objective": "awareness", "daily_cap": sc.budget / 60})
		campaign.Config = datatypes.JSON(cfg)
		if err := s.db.WithContext(ctx).Create(&campaign).Error; err != nil {
			return fmt.Errorf("failed to seed campaign %q: %w", sc.name, err)
		}

		display := seedDisplays[i%len(seedDisplays)]
		loc := CampaignLocation{
			ID:               uuid.New(),
			CampaignID:       campaign.CampaignID,
			DisplayID:        display.DisplayID,
			IsSelected:       true,
			MatchScore:       0.5 + rng.Float64()*0.5,
			BudgetAllocation: sc.budget / 2,
			AddedDate:        start,
		}
		if err := s.db.WithContext(ctx).Create(&loc).Error; err != nil {
			return fmt.Errorf("failed to seed location for %q: %w", sc.name, err)
		}

		if err := s.seedMetrics(ctx, rng, campaign.CampaignID, sc, start, now); err != nil {
			return err
		}
	}

	s.logger.Info("database seeded",
		zap.Int("campaigns", len(seedCampaigns)),
		zap.Int("displays", len(seedDisplays)),
	)
	return nil
}

// seedMetrics writes one row per hour between start and end, jittered around
// the campaign's baseline so aggregates and trends are non-trivial.
func (s *Store) seedMetrics(ctx context.Context, rng *rand.Rand, campaignID uuid.UUID, sc seedCampaign, start, end time.Time) error {
	batch := make([]CampaignMetrics, 0, 256)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.db.WithContext(ctx).CreateInBatches(batch, 256).Error; err != nil {
			return fmt.Errorf("failed to seed metrics: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for ts := start; ts.Before(end); ts = ts.Add(time.Hour) {
		// Daytime hours deliver more than overnight ones.
		hourFactor := 0.4
		if h := ts.Hour(); h >= 7 && h <= 22 {
			hourFactor = 0.8 + 0.4*rng.Float64()
		}
		jitter := 0.85 + 0.3*rng.Float64()

		impressions := int64(float64(sc.baseImpressions) * hourFactor * jitter)
		clicks := int64(float64(sc.baseClicks) * hourFactor * jitter)
		spend := sc.baseSpend * hourFactor * jitter
		reach := impressions * 7 / 10

		m := CampaignMetrics{
			MetricID:        uuid.New(),
			CampaignID:      campaignID,
			Timestamp:       ts,
			Impressions:     impressions,
			Reach:           reach,
			Clicks:          clicks,
			SpendHourly:     spend,
			AttentionScore:  sc.attention * jitter,
			ViewThroughRate: 0.4 + 0.2*rng.Float64(),
		}
		if reach > 0 {
			m.Frequency = float64(impressions) / float64(reach)
		}
		if impressions > 0 {
			m.EngagementRate = float64(clicks) / float64(impressions)
			m.CostPerThousand = spend / float64(impressions) * 1000
		}
		m.PacingPercent = 80 + 40*rng.Float64()

		batch = append(batch, m)
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}
