// Package store holds the campaign-analytics database layer: gorm models,
// connection management, migration and development seed data.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CampaignConfiguration is a campaign created through the platform.
type CampaignConfiguration struct {
	CampaignID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"campaign_id"`
	ConversationID   *uuid.UUID     `gorm:"type:uuid" json:"conversation_id,omitempty"`
	CampaignName     string         `gorm:"size:255;not null" json:"campaign_name"`
	Config           datatypes.JSON `json:"config,omitempty"`
	SelectedDisplays datatypes.JSON `json:"selected_displays,omitempty"`
	TotalBudget      float64        `gorm:"not null" json:"total_budget"`
	StartDate        time.Time      `gorm:"not null" json:"start_date"`
	EndDate          time.Time      `gorm:"not null" json:"end_date"`
	Status           string         `gorm:"size:50;default:draft" json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (CampaignConfiguration) TableName() string { return "campaign_configurations" }

// CampaignLocation associates a campaign with a display location.
type CampaignLocation struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CampaignID           uuid.UUID      `gorm:"type:uuid;index;not null" json:"campaign_id"`
	DisplayID            string         `gorm:"size:50;index;not null" json:"display_id"`
	IsSelected           bool           `gorm:"default:true" json:"is_selected"`
	MatchScore           float64        `json:"match_score"`
	BudgetAllocation     float64        `json:"budget_allocation"`
	CustomSchedule       datatypes.JSON `json:"custom_schedule,omitempty"`
	ImpressionsDelivered int64          `gorm:"default:0" json:"impressions_delivered"`
	AddedDate            time.Time      `json:"added_date"`
	RemovedDate          *time.Time     `json:"removed_date,omitempty"`
}

func (CampaignLocation) TableName() string { return "campaign_locations" }

// CampaignMetrics is one hourly metrics sample for a campaign.
type CampaignMetrics struct {
	MetricID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"metric_id"`
	CampaignID      uuid.UUID `gorm:"type:uuid;index;not null" json:"campaign_id"`
	Timestamp       time.Time `gorm:"index;not null" json:"timestamp"`
	Impressions     int64     `gorm:"default:0" json:"impressions"`
	Reach           int64     `gorm:"default:0" json:"reach"`
	Frequency       float64   `gorm:"default:0" json:"frequency"`
	Clicks          int64     `gorm:"default:0" json:"clicks"`
	ViewThroughRate float64   `gorm:"default:0" json:"view_through_rate"`
	AttentionScore  float64   `gorm:"default:0" json:"attention_score"`
	EngagementRate  float64   `gorm:"default:0" json:"engagement_rate"`
	CostPerThousand float64   `gorm:"default:0" json:"cost_per_thousand"`
	SpendHourly     float64   `gorm:"default:0" json:"spend_hourly"`
	PacingPercent   float64   `gorm:"default:0" json:"pacing_percentage"`
}

func (CampaignMetrics) TableName() string { return "campaign_metrics" }

// DisplayMaster is the master record of a display in the inventory.
type DisplayMaster struct {
	DisplayID           string         `gorm:"size:50;primaryKey" json:"display_id"`
	DisplayName         string         `gorm:"size:255;not null" json:"display_name"`
	VenueName           string         `gorm:"size:255;not null" json:"venue_name"`
	VenueType           string         `gorm:"size:100" json:"venue_type"`
	StreetAddress       string         `gorm:"size:500" json:"street_address"`
	City                string         `gorm:"size:100" json:"city"`
	State               string         `gorm:"size:50" json:"state"`
	ZipCode             string         `gorm:"size:20" json:"zip_code"`
	Latitude            *float64       `json:"latitude,omitempty"`
	Longitude           *float64       `json:"longitude,omitempty"`
	DailyImpressions    int64          `json:"daily_impressions"`
	WeeklyImpressions   int64          `json:"weekly_impressions"`
	PricePerWeek        float64        `json:"price_per_week"`
	PrimaryImageURL     string         `gorm:"size:500" json:"primary_image_url,omitempty"`
	ScreenType          string         `gorm:"size:50" json:"screen_type,omitempty"`
	ScreenSize          string         `gorm:"size:50" json:"screen_size,omitempty"`
	Resolution          string         `gorm:"size:50" json:"resolution,omitempty"`
	OperatingHours      datatypes.JSON `json:"operating_hours,omitempty"`
	DemographicsProfile datatypes.JSON `json:"demographics_profile,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (DisplayMaster) TableName() string { return "display_master" }

// AgentConversation stores one crew run's query and final response.
type AgentConversation struct {
	ConversationID uuid.UUID      `gorm:"type:uuid;primaryKey" json:"conversation_id"`
	SessionID      string         `gorm:"size:100" json:"session_id,omitempty"`
	AgentType      string         `gorm:"size:50;not null" json:"agent_type"`
	UserQuery      string         `gorm:"not null" json:"user_query"`
	AgentResponse  datatypes.JSON `json:"agent_response,omitempty"`
	Context        datatypes.JSON `json:"context,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (AgentConversation) TableName() string { return "agent_conversations" }
