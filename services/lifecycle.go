package services

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/models"
	"github.com/fenilmodi00/ipo-lifecycle/shared"
	"github.com/sirupsen/logrus"
)

// LifecycleConfig carries the calendar windows the state machine runs on.
// Both windows are operator-tunable; the defaults mirror exchange practice.
type LifecycleConfig struct {
	// StalenessWindow is how old a dateless, non-trading offering may get
	// before it is archived.
	StalenessWindow time.Duration
	// RetirementWindow is how long after listing a trading offering keeps
	// being tracked before archival. 37 calendar days covers roughly 25
	// trading days.
	RetirementWindow time.Duration
}

func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		StalenessWindow:  90 * 24 * time.Hour,
		RetirementWindow: 37 * 24 * time.Hour,
	}
}

// LifecycleMachine advances offerings through the lifecycle sequence from
// calendar-date facts. Every pass is idempotent: re-running it over an
// unchanged offering produces no further transitions.
type LifecycleMachine struct {
	offerings OfferingStore
	cfg       LifecycleConfig
	audit     *OfferingAuditLogger
	metrics   *shared.ServiceMetrics
	now       func() time.Time
}

func NewLifecycleMachine(offerings OfferingStore, cfg LifecycleConfig) *LifecycleMachine {
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultLifecycleConfig().StalenessWindow
	}
	if cfg.RetirementWindow <= 0 {
		cfg.RetirementWindow = DefaultLifecycleConfig().RetirementWindow
	}
	return &LifecycleMachine{
		offerings: offerings,
		cfg:       cfg,
		audit:     NewOfferingAuditLogger(),
		metrics:   shared.NewServiceMetrics("lifecycle-machine"),
		now:       time.Now,
	}
}

// Metrics exposes the machine's counters for the metrics endpoint.
func (m *LifecycleMachine) Metrics() *shared.ServiceMetrics {
	return m.metrics
}

// ReconcileSummary is one pass's outcome.
type ReconcileSummary struct {
	Processed   int `json:"processed"`
	Transitions int `json:"transitions"`
	Archived    int `json:"archived"`
	Failures    int `json:"failures"`
}

// ReconcileAll runs one reconciliation pass over every non-archived
// offering. A failure on one offering is isolated; the pass continues with
// the rest.
func (m *LifecycleMachine) ReconcileAll(ctx context.Context) (ReconcileSummary, error) {
	start := time.Now()
	var summary ReconcileSummary

	offerings, err := m.offerings.ListActiveOfferings(ctx)
	if err != nil {
		m.metrics.RecordRequest(false, time.Since(start))
		return summary, shared.WrapError(err, shared.ErrorCategoryDatabase, "ACTIVE_LIST_FAILED",
			"lifecycle-machine", "ReconcileAll", true)
	}

	today := m.now()
	for i := range offerings {
		offering := offerings[i]
		transitions, archived, err := m.reconcileOffering(ctx, &offering, today)
		summary.Processed++
		summary.Transitions += transitions
		if archived {
			summary.Archived++
		}
		if err != nil {
			summary.Failures++
			logrus.WithFields(logrus.Fields{
				"offering_id":  offering.ID,
				"company_name": offering.CompanyName,
				"error":        err,
			}).Error("Reconciliation failed for offering, continuing with the rest")
		}
	}

	m.metrics.RecordRequest(summary.Failures == 0, time.Since(start))
	logrus.WithFields(logrus.Fields{
		"processed":   summary.Processed,
		"transitions": summary.Transitions,
		"archived":    summary.Archived,
		"failures":    summary.Failures,
		"duration":    time.Since(start),
	}).Info("Lifecycle reconciliation pass completed")

	return summary, nil
}

// reconcileOffering advances one offering as far as its dates allow, one
// step at a time with each step's side effects, then checks staleness.
func (m *LifecycleMachine) reconcileOffering(ctx context.Context, offering *models.Offering, today time.Time) (int, bool, error) {
	transitions := 0
	for {
		next, ok := NextTransition(offering, today)
		if !ok {
			break
		}
		old := offering.Status
		offering.Status = next
		applyTransitionEffects(offering, next)
		transitions++

		m.audit.LogStatusTransition(offering, old, next, "date_reconciliation")
	}

	archived := false
	if ShouldArchiveStale(offering, today, m.cfg.StalenessWindow) {
		m.archive(offering, "staleness_window_elapsed")
		archived = true
	}

	if transitions == 0 && !archived {
		return 0, false, nil
	}

	if err := m.offerings.UpdateOffering(ctx, offering); err != nil {
		return transitions, archived, shared.WrapError(err, shared.ErrorCategoryDatabase, "OFFERING_UPDATE_FAILED",
			"lifecycle-machine", "reconcileOffering", true)
	}
	return transitions, archived, nil
}

// RetireListed archives trading offerings whose listing is older than the
// retirement window. This is the post-listing companion to the stale
// archival inside the reconciliation pass.
func (m *LifecycleMachine) RetireListed(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.cfg.RetirementWindow)
	offerings, err := m.offerings.ListRetirableOfferings(ctx, cutoff)
	if err != nil {
		return 0, shared.WrapError(err, shared.ErrorCategoryDatabase, "RETIRABLE_LIST_FAILED",
			"lifecycle-machine", "RetireListed", true)
	}

	retired := 0
	for i := range offerings {
		offering := offerings[i]
		m.archive(&offering, "retirement_window_elapsed")
		if err := m.offerings.UpdateOffering(ctx, &offering); err != nil {
			logrus.WithFields(logrus.Fields{
				"offering_id": offering.ID,
				"error":       err,
			}).Error("Failed to archive retired offering, continuing with the rest")
			continue
		}
		retired++
	}

	logrus.WithFields(logrus.Fields{
		"candidates": len(offerings),
		"retired":    retired,
		"cutoff":     cutoff.Format("2006-01-02"),
	}).Info("Post-listing retirement sweep completed")

	return retired, nil
}

func (m *LifecycleMachine) archive(offering *models.Offering, trigger string) {
	now := m.now()
	offering.Archived = true
	offering.ArchivedAt = &now
	offering.CeilingTrackingActive = false
	m.audit.LogArchival(offering, trigger)
}

// NextTransition returns the single next lifecycle step the offering's
// dates justify, if any. It never looks more than one step ahead, so a
// backlog of known dates is worked off one transition at a time.
func NextTransition(offering *models.Offering, today time.Time) (models.OfferingStatus, bool) {
	if offering.Archived {
		return offering.Status, false
	}
	next, ok := offering.Status.Next()
	if !ok {
		return offering.Status, false
	}
	switch next {
	case models.StatusInDistribution:
		if offering.SubscriptionStart != nil && !dateAfter(*offering.SubscriptionStart, today) {
			return next, true
		}
	case models.StatusAwaitingTrading:
		if offering.SubscriptionEnd != nil && dateBefore(*offering.SubscriptionEnd, today) {
			return next, true
		}
	case models.StatusTrading:
		if offering.TradingStart != nil && !dateAfter(*offering.TradingStart, today) {
			return next, true
		}
	}
	return offering.Status, false
}

func applyTransitionEffects(offering *models.Offering, next models.OfferingStatus) {
	switch next {
	case models.StatusAwaitingTrading:
		offering.DistributionCompleted = true
	case models.StatusTrading:
		offering.CeilingTrackingActive = true
	}
}

// ShouldArchiveStale decides whether a non-trading offering has gone stale.
// A subscription date in the future is a hard guard: an offering that is
// merely early must never be archived, no matter how old the record is.
func ShouldArchiveStale(offering *models.Offering, today time.Time, staleness time.Duration) bool {
	if offering.Archived || offering.Status == models.StatusTrading || offering.TradingStart != nil {
		return false
	}
	if offering.SubscriptionStart != nil && dateAfter(*offering.SubscriptionStart, today) {
		return false
	}
	if offering.SubscriptionEnd != nil && dateAfter(*offering.SubscriptionEnd, today) {
		return false
	}

	reference := offering.CreatedAt
	switch {
	case offering.SubscriptionEnd != nil:
		reference = *offering.SubscriptionEnd
	case offering.SubscriptionStart != nil:
		reference = *offering.SubscriptionStart
	case offering.SPKApprovalDate != nil:
		reference = *offering.SPKApprovalDate
	}

	return today.Sub(reference) > staleness
}

// dateOnly truncates to midnight so calendar comparisons ignore clock time.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dateAfter(a, b time.Time) bool {
	return dateOnly(a).After(dateOnly(b))
}

func dateBefore(a, b time.Time) bool {
	return dateOnly(a).Before(dateOnly(b))
}
