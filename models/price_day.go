package models

import (
	"time"

	"github.com/google/uuid"
)

// DayClassification is the outcome taxonomy for one trading day.
type DayClassification string

const (
	ClassCeiling      DayClassification = "ceiling"
	ClassFloor        DayClassification = "floor"
	ClassBuyerClosed  DayClassification = "buyer_closed"
	ClassSellerClosed DayClassification = "seller_closed"
	ClassUnchanged    DayClassification = "unchanged"
)

// NotificationKind identifies the event a guard flag protects.
type NotificationKind string

const (
	NotifyCeilingBreak NotificationKind = "ceiling_break"
	NotifyFloorLock    NotificationKind = "floor_lock"
	NotifyRelock       NotificationKind = "relock"
	NotifyDailySummary NotificationKind = "daily_summary"
)

// PriceDayRecord holds one trading day of an offering's price-limit
// tracking. There is exactly one record per (offering, day index) and the
// day indexes form a dense 1-based sequence.
type PriceDayRecord struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OfferingID uuid.UUID `json:"offering_id" gorm:"type:uuid;not null;index"`
	DayIndex   int       `json:"day_index" gorm:"not null"`
	TradeDate  time.Time `json:"trade_date" gorm:"not null"`

	OpenPrice  *float64 `json:"open_price" gorm:"type:decimal(12,2)"`
	HighPrice  *float64 `json:"high_price" gorm:"type:decimal(12,2)"`
	LowPrice   *float64 `json:"low_price" gorm:"type:decimal(12,2)"`
	ClosePrice float64  `json:"close_price" gorm:"type:decimal(12,2);not null"`

	HitCeiling     bool              `json:"hit_ceiling" gorm:"not null;default:false"`
	HitFloor       bool              `json:"hit_floor" gorm:"not null;default:false"`
	Relocked       bool              `json:"relocked" gorm:"not null;default:false"`
	Classification DayClassification `json:"classification" gorm:"type:varchar(20);not null"`
	PctChange      float64           `json:"pct_change" gorm:"type:decimal(8,2);not null;default:0"`

	// Guard flags, set exactly once by the notification coordinator after
	// a successful emission. Re-upserting the day never touches these.
	NotifiedCeilingBreak bool `json:"notified_ceiling_break" gorm:"not null;default:false"`
	NotifiedFloor        bool `json:"notified_floor" gorm:"not null;default:false"`
	NotifiedRelock       bool `json:"notified_relock" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"default:CURRENT_TIMESTAMP"`
}

// Notified returns the guard flag for the given event kind.
func (r *PriceDayRecord) Notified(kind NotificationKind) bool {
	switch kind {
	case NotifyCeilingBreak:
		return r.NotifiedCeilingBreak
	case NotifyFloorLock:
		return r.NotifiedFloor
	case NotifyRelock:
		return r.NotifiedRelock
	}
	return false
}

// SetNotified sets the guard flag for the given event kind.
func (r *PriceDayRecord) SetNotified(kind NotificationKind) {
	switch kind {
	case NotifyCeilingBreak:
		r.NotifiedCeilingBreak = true
	case NotifyFloorLock:
		r.NotifiedFloor = true
	case NotifyRelock:
		r.NotifiedRelock = true
	}
}
