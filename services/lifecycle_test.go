package services

import (
	"context"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func machineWithClock(store *memStore, today time.Time) *LifecycleMachine {
	machine := NewLifecycleMachine(store, DefaultLifecycleConfig())
	machine.now = func() time.Time { return today }
	return machine
}

func TestReconcileCatchesUpAllSteps(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	// Every lifecycle date is already in the past; one pass must walk the
	// offering all the way to trading, with each step's side effects.
	offering := &models.Offering{
		CompanyName:       "Acme Teknoloji",
		Status:            models.StatusNewlyApproved,
		SubscriptionStart: datePtr(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)),
		SubscriptionEnd:   datePtr(time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)),
		TradingStart:      datePtr(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)),
	}
	require.NoError(t, store.CreateOffering(ctx, offering))

	machine := machineWithClock(store, time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC))

	summary, err := machine.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 3, summary.Transitions)
	assert.Equal(t, 0, summary.Failures)

	stored, err := store.GetOffering(ctx, offering.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTrading, stored.Status)
	assert.True(t, stored.DistributionCompleted)
	assert.True(t, stored.CeilingTrackingActive)
}

func TestReconcilePassIsIdempotent(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	offering := &models.Offering{
		CompanyName:       "Acme Teknoloji",
		Status:            models.StatusNewlyApproved,
		SubscriptionStart: datePtr(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)),
	}
	require.NoError(t, store.CreateOffering(ctx, offering))

	machine := machineWithClock(store, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))

	first, err := machine.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Transitions)

	second, err := machine.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Transitions)
	assert.Equal(t, 0, second.Archived)
}

func TestNextTransitionStepsAndGuards(t *testing.T) {
	today := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		offering models.Offering
		want     models.OfferingStatus
		ok       bool
	}{
		{
			name:     "no dates no move",
			offering: models.Offering{Status: models.StatusNewlyApproved},
			ok:       false,
		},
		{
			name: "subscription start today enters distribution",
			offering: models.Offering{
				Status:            models.StatusNewlyApproved,
				SubscriptionStart: datePtr(today),
			},
			want: models.StatusInDistribution,
			ok:   true,
		},
		{
			name: "future subscription start stays put",
			offering: models.Offering{
				Status:            models.StatusNewlyApproved,
				SubscriptionStart: datePtr(today.AddDate(0, 0, 1)),
			},
			ok: false,
		},
		{
			name: "subscription end today is still in distribution",
			offering: models.Offering{
				Status:          models.StatusInDistribution,
				SubscriptionEnd: datePtr(today),
			},
			ok: false,
		},
		{
			name: "subscription ended yesterday awaits trading",
			offering: models.Offering{
				Status:          models.StatusInDistribution,
				SubscriptionEnd: datePtr(today.AddDate(0, 0, -1)),
			},
			want: models.StatusAwaitingTrading,
			ok:   true,
		},
		{
			name: "trading start today begins trading",
			offering: models.Offering{
				Status:       models.StatusAwaitingTrading,
				TradingStart: datePtr(today),
			},
			want: models.StatusTrading,
			ok:   true,
		},
		{
			name: "one step only even with later dates known",
			offering: models.Offering{
				Status:            models.StatusNewlyApproved,
				SubscriptionStart: datePtr(today.AddDate(0, 0, -8)),
				SubscriptionEnd:   datePtr(today.AddDate(0, 0, -6)),
				TradingStart:      datePtr(today.AddDate(0, 0, -1)),
			},
			want: models.StatusInDistribution,
			ok:   true,
		},
		{
			name: "archived never moves",
			offering: models.Offering{
				Status:            models.StatusNewlyApproved,
				Archived:          true,
				SubscriptionStart: datePtr(today.AddDate(0, 0, -1)),
			},
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := NextTransition(&tt.offering, today)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, next)
			}
		})
	}
}

func TestShouldArchiveStale(t *testing.T) {
	today := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	staleness := 90 * 24 * time.Hour

	tests := []struct {
		name     string
		offering models.Offering
		want     bool
	}{
		{
			name: "old dateless offering archives",
			offering: models.Offering{
				Status:    models.StatusNewlyApproved,
				CreatedAt: today.AddDate(0, 0, -120),
			},
			want: true,
		},
		{
			name: "recent offering survives",
			offering: models.Offering{
				Status:    models.StatusNewlyApproved,
				CreatedAt: today.AddDate(0, 0, -30),
			},
			want: false,
		},
		{
			name: "future subscription start blocks archival regardless of age",
			offering: models.Offering{
				Status:            models.StatusNewlyApproved,
				CreatedAt:         today.AddDate(0, 0, -300),
				SubscriptionStart: datePtr(today.AddDate(0, 0, 10)),
			},
			want: false,
		},
		{
			name: "future subscription end blocks archival",
			offering: models.Offering{
				Status:            models.StatusInDistribution,
				CreatedAt:         today.AddDate(0, 0, -300),
				SubscriptionStart: datePtr(today.AddDate(0, 0, -300)),
				SubscriptionEnd:   datePtr(today.AddDate(0, 0, 2)),
			},
			want: false,
		},
		{
			name: "staleness runs from the latest known date",
			offering: models.Offering{
				Status:          models.StatusAwaitingTrading,
				CreatedAt:       today.AddDate(0, 0, -300),
				SubscriptionEnd: datePtr(today.AddDate(0, 0, -30)),
			},
			want: false,
		},
		{
			name: "trading offering never goes stale",
			offering: models.Offering{
				Status:       models.StatusTrading,
				CreatedAt:    today.AddDate(0, 0, -300),
				TradingStart: datePtr(today.AddDate(0, 0, -200)),
			},
			want: false,
		},
		{
			name: "known trading start blocks stale archival",
			offering: models.Offering{
				Status:       models.StatusAwaitingTrading,
				CreatedAt:    today.AddDate(0, 0, -300),
				TradingStart: datePtr(today.AddDate(0, 0, 5)),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldArchiveStale(&tt.offering, today, staleness))
		})
	}
}

func TestReconcileArchivesStaleOffering(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	today := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	offering := &models.Offering{
		CompanyName: "Dormant Holding",
		Status:      models.StatusNewlyApproved,
		CreatedAt:   today.AddDate(0, 0, -120),
	}
	require.NoError(t, store.CreateOffering(ctx, offering))

	machine := machineWithClock(store, today)
	summary, err := machine.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Archived)

	stored, err := store.GetOffering(ctx, offering.ID)
	require.NoError(t, err)
	assert.True(t, stored.Archived)
	require.NotNil(t, stored.ArchivedAt)
	assert.False(t, stored.CeilingTrackingActive)
}

func TestRetireListed(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	today := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	oldListing := &models.Offering{
		CompanyName:           "Veteran Listing",
		Status:                models.StatusTrading,
		TradingStart:          datePtr(today.AddDate(0, 0, -40)),
		CeilingTrackingActive: true,
	}
	freshListing := &models.Offering{
		CompanyName:           "Fresh Listing",
		Status:                models.StatusTrading,
		TradingStart:          datePtr(today.AddDate(0, 0, -10)),
		CeilingTrackingActive: true,
	}
	require.NoError(t, store.CreateOffering(ctx, oldListing))
	require.NoError(t, store.CreateOffering(ctx, freshListing))

	machine := machineWithClock(store, today)
	retired, err := machine.RetireListed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, retired)

	stored, err := store.GetOffering(ctx, oldListing.ID)
	require.NoError(t, err)
	assert.True(t, stored.Archived)

	stored, err = store.GetOffering(ctx, freshListing.ID)
	require.NoError(t, err)
	assert.False(t, stored.Archived)
}

func TestReconcileIsolatesFailures(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	offering := &models.Offering{
		CompanyName:       "Acme Teknoloji",
		Status:            models.StatusNewlyApproved,
		SubscriptionStart: datePtr(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)),
	}
	require.NoError(t, store.CreateOffering(ctx, offering))
	store.failOnUpdate = true

	machine := machineWithClock(store, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	summary, err := machine.ReconcileAll(ctx)
	require.NoError(t, err, "a per-offering failure must not fail the pass")
	assert.Equal(t, 1, summary.Failures)
}
