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

// NotificationCoordinator fans out price-limit events with at-most-once
// semantics. Each event kind is protected by a durable guard flag on the
// day record; the flag is only set after the emission round succeeds, so a
// transport failure leaves the event eligible for the next pass.
type NotificationCoordinator struct {
	days        PriceDayStore
	subs        SubscriptionStore
	emitter     Emitter
	emitTimeout time.Duration
	metrics     *shared.ServiceMetrics
}

func NewNotificationCoordinator(days PriceDayStore, subs SubscriptionStore, emitter Emitter, emitTimeout time.Duration) *NotificationCoordinator {
	if emitTimeout <= 0 {
		emitTimeout = 10 * time.Second
	}
	return &NotificationCoordinator{
		days:        days,
		subs:        subs,
		emitter:     emitter,
		emitTimeout: emitTimeout,
		metrics:     shared.NewServiceMetrics("notification-coordinator"),
	}
}

// Metrics exposes the coordinator's counters for the metrics endpoint.
func (c *NotificationCoordinator) Metrics() *shared.ServiceMetrics {
	return c.metrics
}

// QualifyingEvents returns the event kinds a day record currently
// qualifies for, in emission order, guard flags already applied.
func QualifyingEvents(record *models.PriceDayRecord) []models.NotificationKind {
	var kinds []models.NotificationKind
	if record.Classification != models.ClassCeiling && !record.NotifiedCeilingBreak {
		kinds = append(kinds, models.NotifyCeilingBreak)
	}
	if record.HitFloor && !record.NotifiedFloor {
		kinds = append(kinds, models.NotifyFloorLock)
	}
	if record.Relocked && !record.NotifiedRelock {
		kinds = append(kinds, models.NotifyRelock)
	}
	return kinds
}

// ProcessDayEvents evaluates the three guarded events for a freshly
// upserted day record and emits each at most once. Safe to call repeatedly
// for the same record; already-consumed events emit nothing.
func (c *NotificationCoordinator) ProcessDayEvents(ctx context.Context, offering *models.Offering, record *models.PriceDayRecord) error {
	var firstErr error
	for _, kind := range QualifyingEvents(record) {
		start := time.Now()
		err := c.processEvent(ctx, offering, record, kind)
		c.metrics.RecordRequest(err == nil, time.Since(start))
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *NotificationCoordinator) processEvent(ctx context.Context, offering *models.Offering, record *models.PriceDayRecord, kind models.NotificationKind) error {
	targets, trackingSubIDs, skipped, err := c.resolveRecipients(ctx, offering, record.DayIndex, kind)
	if err != nil {
		return err
	}

	title, body := composeMessage(offering, record, kind)
	payload := map[string]string{
		"offering_id": offering.ID.String(),
		"event":       string(kind),
		"day_index":   fmt.Sprintf("%d", record.DayIndex),
		"pct_change":  fmt.Sprintf("%.2f", record.PctChange),
	}

	sent := 0
	failed := 0
	for _, recipient := range targets {
		emitCtx, cancel := context.WithTimeout(ctx, c.emitTimeout)
		err := c.emitter.Emit(emitCtx, *recipient.DeviceToken, title, body, payload)
		cancel()
		if err != nil {
			failed++
			logrus.WithFields(logrus.Fields{
				"offering_id":  offering.ID,
				"recipient_id": recipient.ID,
				"event":        kind,
				"error":        err,
			}).Warn("Notification emission failed")
			continue
		}
		sent++
	}

	// A round with deliverable recipients that all failed is a transport
	// problem; leave the guard clear so the next pass retries. Zero
	// recipients still consumes the event.
	if len(targets) > 0 && sent == 0 {
		return shared.NewServiceError(shared.ErrorCategoryTransport, "EMISSION_FAILED",
			fmt.Sprintf("all %d emissions failed for %s on offering %s day %d", failed, kind, offering.ID, record.DayIndex),
			"notification-coordinator", "ProcessDayEvents", true, nil)
	}

	flipped, err := c.days.MarkNotified(ctx, record.ID, kind)
	if err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "GUARD_FLAG_UPDATE_FAILED",
			"notification-coordinator", "ProcessDayEvents", true)
	}
	if !flipped {
		// A concurrent pass consumed the event between our read and the
		// check-and-set.
		logrus.WithFields(logrus.Fields{
			"offering_id": offering.ID,
			"day_index":   record.DayIndex,
			"event":       kind,
		}).Info("Guard flag already consumed by a concurrent pass")
		record.SetNotified(kind)
		return nil
	}
	record.SetNotified(kind)

	for _, subID := range trackingSubIDs {
		if err := c.subs.IncrementTrackingNotified(ctx, subID); err != nil {
			logrus.WithFields(logrus.Fields{
				"subscription_id": subID,
				"error":           err,
			}).Warn("Failed to bump tracking subscription counter")
		}
	}

	logrus.WithFields(logrus.Fields{
		"offering_id":  offering.ID,
		"company_name": offering.CompanyName,
		"day_index":    record.DayIndex,
		"event":        kind,
		"sent":         sent,
		"failed":       failed,
		"skipped":      skipped,
	}).Info("Notification event consumed")

	return nil
}

// resolveRecipients builds the union of time-boxed tracking subscribers
// still inside their window and standing per-instrument subscribers for
// the event kind. Recipients without a token or with notifications off are
// dropped silently and reported in the skipped count; tracking
// subscription ids are returned only for recipients that survived the
// filter, so notified counters are bumped for actual deliveries alone.
func (c *NotificationCoordinator) resolveRecipients(ctx context.Context, offering *models.Offering, dayIndex int, kind models.NotificationKind) ([]models.Recipient, []uuid.UUID, int, error) {
	now := time.Now()
	seen := make(map[uuid.UUID]bool)
	var recipientIDs []uuid.UUID
	trackingSubsByRecipient := make(map[uuid.UUID][]uuid.UUID)

	trackingSubs, err := c.subs.ListTrackingSubscriptions(ctx, offering.ID)
	if err != nil {
		return nil, nil, 0, shared.WrapError(err, shared.ErrorCategoryDatabase, "TRACKING_SUBS_LOOKUP_FAILED",
			"notification-coordinator", "resolveRecipients", true)
	}
	for _, sub := range trackingSubs {
		if !sub.CoversDay(dayIndex, now) {
			continue
		}
		trackingSubsByRecipient[sub.RecipientID] = append(trackingSubsByRecipient[sub.RecipientID], sub.ID)
		if !seen[sub.RecipientID] {
			seen[sub.RecipientID] = true
			recipientIDs = append(recipientIDs, sub.RecipientID)
		}
	}

	instrumentSubs, err := c.subs.ListInstrumentSubscriptions(ctx, offering.ID, kind)
	if err != nil {
		return nil, nil, 0, shared.WrapError(err, shared.ErrorCategoryDatabase, "INSTRUMENT_SUBS_LOOKUP_FAILED",
			"notification-coordinator", "resolveRecipients", true)
	}
	for _, sub := range instrumentSubs {
		if !sub.Matches(offering.ID, kind) {
			continue
		}
		if !seen[sub.RecipientID] {
			seen[sub.RecipientID] = true
			recipientIDs = append(recipientIDs, sub.RecipientID)
		}
	}

	if len(recipientIDs) == 0 {
		return nil, nil, 0, nil
	}

	recipients, err := c.subs.GetRecipients(ctx, recipientIDs)
	if err != nil {
		return nil, nil, 0, shared.WrapError(err, shared.ErrorCategoryDatabase, "RECIPIENT_LOOKUP_FAILED",
			"notification-coordinator", "resolveRecipients", true)
	}

	var deliverable []models.Recipient
	var trackingSubIDs []uuid.UUID
	for _, r := range recipients {
		if !r.NotificationsEnabled || !r.NotifyCeilingEvents || !r.HasToken() {
			continue
		}
		deliverable = append(deliverable, r)
		trackingSubIDs = append(trackingSubIDs, trackingSubsByRecipient[r.ID]...)
	}
	return deliverable, trackingSubIDs, len(recipients) - len(deliverable), nil
}

func composeMessage(offering *models.Offering, record *models.PriceDayRecord, kind models.NotificationKind) (string, string) {
	switch kind {
	case models.NotifyCeilingBreak:
		return fmt.Sprintf("%s broke the ceiling", offering.CompanyName),
			fmt.Sprintf("%s closed %s on day %d (%.2f%%).", offering.CompanyName, record.Classification, record.DayIndex, record.PctChange)
	case models.NotifyFloorLock:
		return fmt.Sprintf("%s locked at the floor", offering.CompanyName),
			fmt.Sprintf("%s hit the lower price limit on day %d (%.2f%%).", offering.CompanyName, record.DayIndex, record.PctChange)
	case models.NotifyRelock:
		return fmt.Sprintf("%s is back at the ceiling", offering.CompanyName),
			fmt.Sprintf("%s re-locked at the upper price limit on day %d.", offering.CompanyName, record.DayIndex)
	}
	return fmt.Sprintf("%s update", offering.CompanyName),
		fmt.Sprintf("Day %d closed %s (%.2f%%).", record.DayIndex, record.Classification, record.PctChange)
}
