package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/models"
	"github.com/fenilmodi00/ipo-lifecycle/services"
	"github.com/fenilmodi00/ipo-lifecycle/shared"
	"github.com/sirupsen/logrus"
)

// DailyTrackingJob re-drives the notification coordinator over the most
// recent trading day of every tracked offering. Events already consumed
// are no-ops behind the per-record guard flags, so the job doubles as a
// retry path for emission rounds that failed when the sample arrived.
type DailyTrackingJob struct {
	Offerings   services.OfferingStore
	Days        services.PriceDayStore
	Coordinator *services.NotificationCoordinator

	// TrackingDayBudget caps how many trading days an offering stays in
	// the sweep after listing.
	TrackingDayBudget int
}

func NewDailyTrackingJob(offerings services.OfferingStore, days services.PriceDayStore, coordinator *services.NotificationCoordinator, trackingDayBudget int) *DailyTrackingJob {
	return &DailyTrackingJob{
		Offerings:         offerings,
		Days:              days,
		Coordinator:       coordinator,
		TrackingDayBudget: trackingDayBudget,
	}
}

func (j *DailyTrackingJob) Run() {
	logrus.Info("Starting Daily Tracking Job")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	offerings, err := j.Offerings.ListTrackedOfferings(ctx)
	if err != nil {
		logrus.Errorf("Failed to run Daily Tracking Job: failed to list tracked offerings: %v", err)
		return
	}

	logrus.Infof("Sweeping %d tracked offerings for pending notifications", len(offerings))

	byID := make(map[string]*models.Offering, len(offerings))
	itemIDs := make([]string, 0, len(offerings))
	for i := range offerings {
		id := offerings[i].ID.String()
		byID[id] = &offerings[i]
		itemIDs = append(itemIDs, id)
	}

	skippedCount := 0
	result := shared.ProcessBatchWithIsolation(itemIDs, func(itemID string) error {
		offering := byID[itemID]

		record, err := j.Days.GetLatestPriceDay(ctx, offering.ID)
		if err != nil {
			return fmt.Errorf("loading latest day for %s: %w", offering.CompanyName, err)
		}
		if record == nil {
			skippedCount++
			return nil
		}
		if j.TrackingDayBudget > 0 && record.DayIndex > j.TrackingDayBudget {
			logrus.WithFields(logrus.Fields{
				"offering":  offering.CompanyName,
				"day_index": record.DayIndex,
				"budget":    j.TrackingDayBudget,
			}).Debug("Offering past tracking day budget, skipping")
			skippedCount++
			return nil
		}

		return j.Coordinator.ProcessDayEvents(ctx, offering, record)
	})

	if result.ErrorSummary != "" {
		logrus.Warn(result.ErrorSummary)
	}
	logrus.WithFields(logrus.Fields{
		"total":     result.TotalProcessed,
		"succeeded": result.SuccessCount,
		"skipped":   skippedCount,
		"failures":  len(result.FailedItems),
		"duration":  result.ProcessingTime,
	}).Infof("Daily Tracking Job completed: %d succeeded, %d skipped, %d failed out of %d tracked",
		result.SuccessCount, skippedCount, len(result.FailedItems), result.TotalProcessed)
}
