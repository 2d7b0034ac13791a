package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/models"
	"github.com/fenilmodi00/ipo-lifecycle/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DailySample is one day's OHLC input for an offering. Close is mandatory;
// the rest is stored when present.
type DailySample struct {
	OfferingID uuid.UUID  `json:"offering_id"`
	DayIndex   int        `json:"day_index"`
	TradeDate  time.Time  `json:"trade_date"`
	OpenPrice  *float64   `json:"open_price"`
	HighPrice  *float64   `json:"high_price"`
	LowPrice   *float64   `json:"low_price"`
	ClosePrice float64   `json:"close_price"`
}

// PriceLimitTracker maintains the per-day tracking records. The caller is
// responsible for feeding day indexes in contiguous order; the tracker
// accepts gaps but does not backfill them.
type PriceLimitTracker struct {
	offerings OfferingStore
	days      PriceDayStore
	metrics   *shared.ServiceMetrics
}

func NewPriceLimitTracker(offerings OfferingStore, days PriceDayStore) *PriceLimitTracker {
	return &PriceLimitTracker{
		offerings: offerings,
		days:      days,
		metrics:   shared.NewServiceMetrics("price-limit-tracker"),
	}
}

// Metrics exposes the tracker's counters for the metrics endpoint.
func (t *PriceLimitTracker) Metrics() *shared.ServiceMetrics {
	return t.metrics
}

// UpsertDay records one trading day for an offering. Repeating the call
// with identical inputs yields the same stored state and never touches the
// notification guard flags. The updated offering is returned alongside the
// record so the coordinator can act on both without a re-read.
func (t *PriceLimitTracker) UpsertDay(ctx context.Context, sample DailySample) (*models.PriceDayRecord, *models.Offering, error) {
	start := time.Now()
	record, offering, err := t.upsertDay(ctx, sample)
	t.metrics.RecordRequest(err == nil, time.Since(start))
	return record, offering, err
}

func (t *PriceLimitTracker) upsertDay(ctx context.Context, sample DailySample) (*models.PriceDayRecord, *models.Offering, error) {
	if err := validateSample(sample); err != nil {
		return nil, nil, err
	}

	offering, err := t.offerings.GetOffering(ctx, sample.OfferingID)
	if err != nil {
		return nil, nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "OFFERING_LOOKUP_FAILED",
			"price-limit-tracker", "UpsertDay", true)
	}
	if offering == nil {
		return nil, nil, shared.NewServiceError(shared.ErrorCategoryValidation, "OFFERING_NOT_FOUND",
			fmt.Sprintf("offering %s does not exist", sample.OfferingID),
			"price-limit-tracker", "UpsertDay", false, nil)
	}
	if offering.Archived {
		return nil, nil, shared.NewServiceError(shared.ErrorCategoryValidation, "OFFERING_ARCHIVED",
			fmt.Sprintf("offering %s is archived and excluded from tracking", sample.OfferingID),
			"price-limit-tracker", "UpsertDay", false, nil)
	}

	prevRecord, err := t.previousDay(ctx, sample)
	if err != nil {
		return nil, nil, err
	}

	outcome := ClassifyDay(sample.ClosePrice, prevCloseFor(sample.DayIndex, prevRecord, offering), sample.HighPrice, sample.LowPrice)

	record := &models.PriceDayRecord{
		OfferingID:     sample.OfferingID,
		DayIndex:       sample.DayIndex,
		TradeDate:      sample.TradeDate,
		OpenPrice:      sample.OpenPrice,
		HighPrice:      sample.HighPrice,
		LowPrice:       sample.LowPrice,
		ClosePrice:     sample.ClosePrice,
		HitCeiling:     outcome.HitCeiling,
		HitFloor:       outcome.HitFloor,
		Classification: outcome.Classification,
		PctChange:      outcome.PctChange,
	}

	// Re-lock: back at the ceiling after a day off it. Day 1 can never
	// re-lock, and a gap before this day leaves the previous record absent,
	// which also means no re-lock.
	if outcome.Classification == models.ClassCeiling && sample.DayIndex > 1 &&
		prevRecord != nil && prevRecord.Classification != models.ClassCeiling {
		record.Relocked = true
	}

	stored, err := t.days.UpsertPriceDay(ctx, record)
	if err != nil {
		return nil, nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "DAY_UPSERT_FAILED",
			"price-limit-tracker", "UpsertDay", true)
	}

	if err := t.applyOfferingEffects(ctx, offering, stored); err != nil {
		return stored, offering, err
	}

	logrus.WithFields(logrus.Fields{
		"offering_id":    offering.ID,
		"company_name":   offering.CompanyName,
		"day_index":      stored.DayIndex,
		"classification": stored.Classification,
		"pct_change":     stored.PctChange,
		"relocked":       stored.Relocked,
	}).Info("Recorded tracking day")

	return stored, offering, nil
}

// previousDay loads the record for dayIndex-1 when one can exist.
func (t *PriceLimitTracker) previousDay(ctx context.Context, sample DailySample) (*models.PriceDayRecord, error) {
	if sample.DayIndex <= 1 {
		return nil, nil
	}
	prev, err := t.days.GetPriceDay(ctx, sample.OfferingID, sample.DayIndex-1)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "PREV_DAY_LOOKUP_FAILED",
			"price-limit-tracker", "UpsertDay", true)
	}
	return prev, nil
}

// applyOfferingEffects latches the offering-level tracking fields derived
// from the stored day record.
func (t *PriceLimitTracker) applyOfferingEffects(ctx context.Context, offering *models.Offering, record *models.PriceDayRecord) error {
	changed := false

	if record.Classification != models.ClassCeiling && !offering.CeilingBroken {
		offering.CeilingBroken = true
		changed = true
		logrus.WithFields(logrus.Fields{
			"offering_id":  offering.ID,
			"company_name": offering.CompanyName,
			"day_index":    record.DayIndex,
		}).Info("Offering broke the ceiling for the first time")
	}

	if record.DayIndex == 1 && offering.FirstDayClosePrice == nil {
		close := record.ClosePrice
		offering.FirstDayClosePrice = &close
		changed = true
	}

	if record.DayIndex > offering.TradingDayCount {
		offering.TradingDayCount = record.DayIndex
		changed = true
	}

	if !changed {
		return nil
	}

	if err := t.offerings.UpdateOffering(ctx, offering); err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "OFFERING_UPDATE_FAILED",
			"price-limit-tracker", "UpsertDay", true)
	}
	return nil
}

func validateSample(sample DailySample) error {
	if sample.OfferingID == uuid.Nil {
		return shared.NewServiceError(shared.ErrorCategoryValidation, "MISSING_OFFERING_ID",
			"offering id is required", "price-limit-tracker", "UpsertDay", false, nil)
	}
	if sample.DayIndex < 1 {
		return shared.NewServiceError(shared.ErrorCategoryValidation, "INVALID_DAY_INDEX",
			fmt.Sprintf("day index must be >= 1, got %d", sample.DayIndex),
			"price-limit-tracker", "UpsertDay", false, nil)
	}
	if sample.ClosePrice <= 0 {
		return shared.NewServiceError(shared.ErrorCategoryValidation, "MISSING_CLOSE_PRICE",
			"close price is required and must be positive", "price-limit-tracker", "UpsertDay", false, nil)
	}
	if sample.TradeDate.IsZero() {
		return shared.NewServiceError(shared.ErrorCategoryValidation, "MISSING_TRADE_DATE",
			"trade date is required", "price-limit-tracker", "UpsertDay", false, nil)
	}
	return nil
}

// prevCloseFor picks the reference close for classification. Day 1 has no
// reference, so the classifier's opening-day rule applies. A later day
// normally references the previous day's close; when that record is
// missing (a gap the caller chose to leave), the subscription price is the
// fallback reference.
func prevCloseFor(dayIndex int, prev *models.PriceDayRecord, offering *models.Offering) *float64 {
	if dayIndex <= 1 {
		return nil
	}
	if prev != nil {
		return &prev.ClosePrice
	}
	if offering.IPOPrice > 0 {
		price := offering.IPOPrice
		return &price
	}
	return nil
}
