package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/services"
	"github.com/sirupsen/logrus"
)

// ArchiverJob retires long-listed offerings whose retirement window has
// elapsed since trading start.
type ArchiverJob struct {
	Machine *services.LifecycleMachine
}

func NewArchiverJob(machine *services.LifecycleMachine) *ArchiverJob {
	return &ArchiverJob{Machine: machine}
}

func (j *ArchiverJob) Run() {
	logrus.Info("Starting Archiver Job")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	retired, err := j.Machine.RetireListed(ctx)
	if err != nil {
		logrus.Errorf("Failed to run Archiver Job: %v", err)
		return
	}

	logrus.Infof("Archiver Job completed: %d offerings retired", retired)
}
