package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/services"
	"github.com/sirupsen/logrus"
)

// LifecycleReconcileJob walks every non-archived offering through the
// date-driven status machine and archives stale entries.
type LifecycleReconcileJob struct {
	Machine *services.LifecycleMachine
}

func NewLifecycleReconcileJob(machine *services.LifecycleMachine) *LifecycleReconcileJob {
	return &LifecycleReconcileJob{Machine: machine}
}

func (j *LifecycleReconcileJob) Run() {
	logrus.Info("Starting Lifecycle Reconcile Job")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	summary, err := j.Machine.ReconcileAll(ctx)
	if err != nil {
		logrus.Errorf("Failed to run Lifecycle Reconcile Job: %v", err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"processed":   summary.Processed,
		"transitions": summary.Transitions,
		"archived":    summary.Archived,
		"failures":    summary.Failures,
	}).Infof("Lifecycle Reconcile Job completed: %d processed, %d transitions, %d archived, %d failed",
		summary.Processed, summary.Transitions, summary.Archived, summary.Failures)
}
