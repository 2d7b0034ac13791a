package services

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/models"
	"github.com/google/uuid"
)

// OfferingStore is the persistence boundary for offerings. Lookups return
// (nil, nil) when no row matches.
type OfferingStore interface {
	GetOffering(ctx context.Context, id uuid.UUID) (*models.Offering, error)
	GetOfferingByTicker(ctx context.Context, ticker string) (*models.Offering, error)
	GetOfferingByReference(ctx context.Context, referenceID string) (*models.Offering, error)
	GetOfferingByNormalizedName(ctx context.Context, normalizedName string) (*models.Offering, error)

	// ListActiveOfferings returns every non-archived offering, for the
	// lifecycle reconciliation pass.
	ListActiveOfferings(ctx context.Context) ([]models.Offering, error)

	// ListTrackedOfferings returns non-archived offerings whose ceiling
	// tracking is active and not yet broken.
	ListTrackedOfferings(ctx context.Context) ([]models.Offering, error)

	// ListRetirableOfferings returns trading offerings whose trading start
	// is on or before the cutoff date.
	ListRetirableOfferings(ctx context.Context, cutoff time.Time) ([]models.Offering, error)

	CreateOffering(ctx context.Context, offering *models.Offering) error
	UpdateOffering(ctx context.Context, offering *models.Offering) error
}

// PriceDayStore is the persistence boundary for per-day tracking records.
type PriceDayStore interface {
	GetPriceDay(ctx context.Context, offeringID uuid.UUID, dayIndex int) (*models.PriceDayRecord, error)
	GetLatestPriceDay(ctx context.Context, offeringID uuid.UUID) (*models.PriceDayRecord, error)
	ListPriceDays(ctx context.Context, offeringID uuid.UUID) ([]models.PriceDayRecord, error)

	// UpsertPriceDay inserts or updates the record keyed by
	// (offering, day index). Price and classification fields are written;
	// notification guard flags are preserved as stored. The returned record
	// reflects the stored row including those flags.
	UpsertPriceDay(ctx context.Context, record *models.PriceDayRecord) (*models.PriceDayRecord, error)

	// MarkNotified atomically sets the guard flag for the given kind and
	// reports whether this call actually flipped it. A false return means
	// another pass already consumed the event.
	MarkNotified(ctx context.Context, recordID uuid.UUID, kind models.NotificationKind) (bool, error)
}

// SubscriptionStore resolves the subscriber classes for fan-out.
type SubscriptionStore interface {
	ListTrackingSubscriptions(ctx context.Context, offeringID uuid.UUID) ([]models.TrackingSubscription, error)
	ListInstrumentSubscriptions(ctx context.Context, offeringID uuid.UUID, kind models.NotificationKind) ([]models.InstrumentSubscription, error)
	GetRecipients(ctx context.Context, ids []uuid.UUID) ([]models.Recipient, error)
	IncrementTrackingNotified(ctx context.Context, subscriptionID uuid.UUID) error
}

// Emitter is the notification transport boundary. The coordinator never
// looks past the returned error.
type Emitter interface {
	Emit(ctx context.Context, token, title, body string, payload map[string]string) error
}
