package services

import (
	"context"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecipient(store *memStore, token string) uuid.UUID {
	recipient := models.Recipient{
		ID:                   uuid.New(),
		NotificationsEnabled: true,
		NotifyCeilingEvents:  true,
	}
	if token != "" {
		recipient.DeviceToken = &token
	}
	store.recipients[recipient.ID] = recipient
	return recipient.ID
}

func seedTrackingSub(store *memStore, recipientID, offeringID uuid.UUID, trackingDays int) uuid.UUID {
	sub := models.TrackingSubscription{
		ID:           uuid.New(),
		RecipientID:  recipientID,
		OfferingID:   offeringID,
		TrackingDays: trackingDays,
		IsActive:     true,
	}
	store.trackingSubs = append(store.trackingSubs, sub)
	return sub.ID
}

func seedBundleSub(store *memStore, recipientID uuid.UUID, kind models.NotificationKind) {
	store.instrumentSubs = append(store.instrumentSubs, models.InstrumentSubscription{
		ID:           uuid.New(),
		RecipientID:  recipientID,
		EventType:    kind,
		AnnualBundle: true,
	})
}

func storedDay(t *testing.T, store *memStore, offeringID uuid.UUID, dayIndex int, class models.DayClassification, relocked bool) *models.PriceDayRecord {
	t.Helper()
	record := &models.PriceDayRecord{
		OfferingID:     offeringID,
		DayIndex:       dayIndex,
		TradeDate:      time.Date(2026, 3, 1+dayIndex, 0, 0, 0, 0, time.UTC),
		ClosePrice:     10.80,
		Classification: class,
		HitFloor:       class == models.ClassFloor,
		Relocked:       relocked,
		PctChange:      -1.82,
	}
	stored, err := store.UpsertPriceDay(context.Background(), record)
	require.NoError(t, err)
	return stored
}

func TestProcessDayEventsAtMostOnce(t *testing.T) {
	store := newMemStore()
	offering := seedTrackedOffering(t, store, 10.00)
	recipientID := seedRecipient(store, "tok-1")
	seedTrackingSub(store, recipientID, offering.ID, 10)

	emitter := &fakeEmitter{}
	coordinator := NewNotificationCoordinator(store, store, emitter, time.Second)
	ctx := context.Background()

	record := storedDay(t, store, offering.ID, 2, models.ClassSellerClosed, false)

	require.NoError(t, coordinator.ProcessDayEvents(ctx, offering, record))
	assert.Equal(t, 1, emitter.count())
	assert.True(t, record.NotifiedCeilingBreak)

	// Re-running over the same stored record emits nothing further.
	fresh, err := store.GetPriceDay(ctx, offering.ID, 2)
	require.NoError(t, err)
	require.NoError(t, coordinator.ProcessDayEvents(ctx, offering, fresh))
	assert.Equal(t, 1, emitter.count())
}

func TestProcessDayEventsFailedRoundLeavesGuardClear(t *testing.T) {
	store := newMemStore()
	offering := seedTrackedOffering(t, store, 10.00)
	recipientID := seedRecipient(store, "tok-1")
	seedTrackingSub(store, recipientID, offering.ID, 10)

	emitter := &fakeEmitter{failAll: true}
	coordinator := NewNotificationCoordinator(store, store, emitter, time.Second)
	ctx := context.Background()

	record := storedDay(t, store, offering.ID, 2, models.ClassSellerClosed, false)

	err := coordinator.ProcessDayEvents(ctx, offering, record)
	require.Error(t, err)

	stored, err := store.GetPriceDay(ctx, offering.ID, 2)
	require.NoError(t, err)
	assert.False(t, stored.NotifiedCeilingBreak, "failed round must not consume the event")

	// Transport recovers; the next pass delivers and consumes.
	emitter.failAll = false
	require.NoError(t, coordinator.ProcessDayEvents(ctx, offering, stored))
	assert.Equal(t, 1, emitter.count())

	stored, err = store.GetPriceDay(ctx, offering.ID, 2)
	require.NoError(t, err)
	assert.True(t, stored.NotifiedCeilingBreak)
}

func TestProcessDayEventsZeroRecipientsConsumes(t *testing.T) {
	store := newMemStore()
	offering := seedTrackedOffering(t, store, 10.00)

	emitter := &fakeEmitter{}
	coordinator := NewNotificationCoordinator(store, store, emitter, time.Second)
	ctx := context.Background()

	record := storedDay(t, store, offering.ID, 2, models.ClassSellerClosed, false)

	require.NoError(t, coordinator.ProcessDayEvents(ctx, offering, record))
	assert.Equal(t, 0, emitter.count())

	stored, err := store.GetPriceDay(ctx, offering.ID, 2)
	require.NoError(t, err)
	assert.True(t, stored.NotifiedCeilingBreak, "an event nobody subscribes to is still consumed")
}

func TestProcessDayEventsRecipientUnion(t *testing.T) {
	store := newMemStore()
	offering := seedTrackedOffering(t, store, 10.00)

	// One tracking subscriber, one annual-bundle subscriber, one recipient
	// on both channels, one subscriber without a token.
	trackedID := seedRecipient(store, "tok-tracked")
	bundleID := seedRecipient(store, "tok-bundle")
	bothID := seedRecipient(store, "tok-both")
	tokenlessID := seedRecipient(store, "")

	subID := seedTrackingSub(store, trackedID, offering.ID, 10)
	seedTrackingSub(store, bothID, offering.ID, 10)
	tokenlessSubID := seedTrackingSub(store, tokenlessID, offering.ID, 10)
	seedBundleSub(store, bundleID, models.NotifyCeilingBreak)
	seedBundleSub(store, bothID, models.NotifyCeilingBreak)

	emitter := &fakeEmitter{}
	coordinator := NewNotificationCoordinator(store, store, emitter, time.Second)
	ctx := context.Background()

	record := storedDay(t, store, offering.ID, 2, models.ClassSellerClosed, false)

	require.NoError(t, coordinator.ProcessDayEvents(ctx, offering, record))

	// Union with deduplication, tokenless recipient skipped.
	assert.Equal(t, 3, emitter.count())
	assert.Equal(t, 1, store.notifiedBumps[subID])
	assert.Equal(t, 0, store.notifiedBumps[tokenlessSubID])
}

func TestResolveRecipientsFiltersUndeliverable(t *testing.T) {
	store := newMemStore()
	offering := seedTrackedOffering(t, store, 10.00)

	deliverableID := seedRecipient(store, "tok-ok")
	tokenlessID := seedRecipient(store, "")

	deliverableSubID := seedTrackingSub(store, deliverableID, offering.ID, 10)
	tokenlessSubID := seedTrackingSub(store, tokenlessID, offering.ID, 10)

	coordinator := NewNotificationCoordinator(store, store, &fakeEmitter{}, time.Second)

	targets, subIDs, skipped, err := coordinator.resolveRecipients(context.Background(), offering, 2, models.NotifyCeilingBreak)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, deliverableID, targets[0].ID)
	assert.Equal(t, 1, skipped)
	assert.Contains(t, subIDs, deliverableSubID)
	assert.NotContains(t, subIDs, tokenlessSubID)
}

func TestProcessDayEventsTrackingWindowExpired(t *testing.T) {
	store := newMemStore()
	offering := seedTrackedOffering(t, store, 10.00)
	recipientID := seedRecipient(store, "tok-1")
	seedTrackingSub(store, recipientID, offering.ID, 5)

	emitter := &fakeEmitter{}
	coordinator := NewNotificationCoordinator(store, store, emitter, time.Second)
	ctx := context.Background()

	// Day 6 is outside a 5-day tracking tier.
	record := storedDay(t, store, offering.ID, 6, models.ClassSellerClosed, false)

	require.NoError(t, coordinator.ProcessDayEvents(ctx, offering, record))
	assert.Equal(t, 0, emitter.count())
}

func TestQualifyingEvents(t *testing.T) {
	tests := []struct {
		name   string
		record models.PriceDayRecord
		want   []models.NotificationKind
	}{
		{
			name:   "ceiling day produces nothing",
			record: models.PriceDayRecord{Classification: models.ClassCeiling},
			want:   nil,
		},
		{
			name:   "off-ceiling day produces a break",
			record: models.PriceDayRecord{Classification: models.ClassSellerClosed},
			want:   []models.NotificationKind{models.NotifyCeilingBreak},
		},
		{
			name:   "floor day produces break and floor lock",
			record: models.PriceDayRecord{Classification: models.ClassFloor, HitFloor: true},
			want:   []models.NotificationKind{models.NotifyCeilingBreak, models.NotifyFloorLock},
		},
		{
			name:   "relock day produces only the relock",
			record: models.PriceDayRecord{Classification: models.ClassCeiling, Relocked: true},
			want:   []models.NotificationKind{models.NotifyRelock},
		},
		{
			name: "consumed guards suppress their events",
			record: models.PriceDayRecord{
				Classification:       models.ClassFloor,
				HitFloor:             true,
				NotifiedCeilingBreak: true,
				NotifiedFloor:        true,
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QualifyingEvents(&tt.record))
		})
	}
}
