package models

import (
	"time"

	"github.com/google/uuid"
)

// OfferingStatus is the lifecycle state of an offering. The sequence is
// strictly linear; an offering never moves backward.
type OfferingStatus string

const (
	StatusNewlyApproved   OfferingStatus = "newly_approved"
	StatusInDistribution  OfferingStatus = "in_distribution"
	StatusAwaitingTrading OfferingStatus = "awaiting_trading"
	StatusTrading         OfferingStatus = "trading"
)

// Valid reports whether s is one of the known lifecycle states.
func (s OfferingStatus) Valid() bool {
	switch s {
	case StatusNewlyApproved, StatusInDistribution, StatusAwaitingTrading, StatusTrading:
		return true
	}
	return false
}

// Next returns the state that follows s in the lifecycle sequence.
// The second return value is false for the terminal trading state.
func (s OfferingStatus) Next() (OfferingStatus, bool) {
	switch s {
	case StatusNewlyApproved:
		return StatusInDistribution, true
	case StatusInDistribution:
		return StatusAwaitingTrading, true
	case StatusAwaitingTrading:
		return StatusTrading, true
	}
	return s, false
}

type Offering struct {
	// Primary identification
	ID          uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Ticker      *string   `json:"ticker" gorm:"type:varchar(20);uniqueIndex"`
	CompanyName string    `json:"company_name" gorm:"type:varchar(255);not null"`
	ReferenceID *string   `json:"reference_id" gorm:"type:varchar(100);uniqueIndex"`

	// Lifecycle
	Status                OfferingStatus `json:"status" gorm:"type:varchar(50);not null;default:'newly_approved'"`
	Archived              bool           `json:"archived" gorm:"not null;default:false"`
	ArchivedAt            *time.Time     `json:"archived_at"`
	DistributionCompleted bool           `json:"distribution_completed" gorm:"not null;default:false"`

	// Date facts, populated progressively as they become known
	SPKApprovalDate     *time.Time `json:"spk_approval_date"`
	SubscriptionStart   *time.Time `json:"subscription_start"`
	SubscriptionEnd     *time.Time `json:"subscription_end"`
	TradingStart        *time.Time `json:"trading_start"`
	ExpectedTradingDate *time.Time `json:"expected_trading_date"`

	// Price-limit tracking state
	CeilingTrackingActive bool     `json:"ceiling_tracking_active" gorm:"not null;default:false"`
	CeilingBroken         bool     `json:"ceiling_broken" gorm:"not null;default:false"`
	FirstDayClosePrice    *float64 `json:"first_day_close_price" gorm:"type:decimal(12,2)"`
	TradingDayCount       int      `json:"trading_day_count" gorm:"not null;default:0"`

	// Subscription price, the fallback reference close when a prior day
	// record is missing
	IPOPrice float64 `json:"ipo_price" gorm:"type:decimal(12,2);not null;default:0"`

	// Audit fields
	CreatedAt time.Time `json:"created_at" gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"default:CURRENT_TIMESTAMP"`
}
