package models

import (
	"time"

	"github.com/google/uuid"
)

// Recipient is a push-notification receiver. A recipient without a device
// token is skipped at fan-out time, not treated as a failure.
type Recipient struct {
	ID                    uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DeviceToken           *string   `json:"device_token" gorm:"type:varchar(512)"`
	NotificationsEnabled  bool      `json:"notifications_enabled" gorm:"not null;default:true"`
	NotifyCeilingEvents   bool      `json:"notify_ceiling_events" gorm:"not null;default:true"`
	NotifyLifecycleEvents bool      `json:"notify_lifecycle_events" gorm:"not null;default:true"`
	CreatedAt             time.Time `json:"created_at" gorm:"default:CURRENT_TIMESTAMP"`
}

// HasToken reports whether the recipient can actually be delivered to.
func (r *Recipient) HasToken() bool {
	return r.DeviceToken != nil && *r.DeviceToken != ""
}

// TrackingSubscription is a time-boxed subscription to an offering's
// price-limit tracking. TrackingDays is the purchased tier (5, 10, 15 or
// 20 days); the recipient receives events only while the offering's day
// index is still inside that window.
type TrackingSubscription struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientID   uuid.UUID  `json:"recipient_id" gorm:"type:uuid;not null;index"`
	OfferingID    uuid.UUID  `json:"offering_id" gorm:"type:uuid;not null;index"`
	TrackingDays  int        `json:"tracking_days" gorm:"not null"`
	IsActive      bool       `json:"is_active" gorm:"not null;default:true"`
	ExpiresAt     *time.Time `json:"expires_at"`
	NotifiedCount int        `json:"notified_count" gorm:"not null;default:0"`
	CreatedAt     time.Time  `json:"created_at" gorm:"default:CURRENT_TIMESTAMP"`
}

// CoversDay reports whether the subscription is still live for the given
// trading day index at the given time.
func (s *TrackingSubscription) CoversDay(dayIndex int, now time.Time) bool {
	if !s.IsActive || s.TrackingDays < dayIndex {
		return false
	}
	if s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
		return false
	}
	return true
}

// InstrumentSubscription is a standing subscription to a specific event
// type for one offering, or for every offering when AnnualBundle is set.
type InstrumentSubscription struct {
	ID           uuid.UUID        `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientID  uuid.UUID        `json:"recipient_id" gorm:"type:uuid;not null;index"`
	OfferingID   *uuid.UUID       `json:"offering_id" gorm:"type:uuid;index"`
	EventType    NotificationKind `json:"event_type" gorm:"type:varchar(30);not null"`
	AnnualBundle bool             `json:"annual_bundle" gorm:"not null;default:false"`
	Muted        bool             `json:"muted" gorm:"not null;default:false"`
	CreatedAt    time.Time        `json:"created_at" gorm:"default:CURRENT_TIMESTAMP"`
}

// Matches reports whether the subscription applies to the given offering
// and event kind.
func (s *InstrumentSubscription) Matches(offeringID uuid.UUID, kind NotificationKind) bool {
	if s.Muted || s.EventType != kind {
		return false
	}
	if s.AnnualBundle {
		return true
	}
	return s.OfferingID != nil && *s.OfferingID == offeringID
}
