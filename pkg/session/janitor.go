package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/orgportal/pkg/observability"
)

// Purger removes expired sessions
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// PurgeRecorder receives the number of purged sessions
type PurgeRecorder interface {
	RecordSessionsPurged(n int64)
}

// Janitor periodically removes expired sessions on a cron schedule
type Janitor struct {
	purger   Purger
	recorder PurgeRecorder
	logger   *observability.Logger
	cron     *cron.Cron
	timeout  time.Duration
}

// NewJanitor schedules purger on schedule (standard 5-field cron or
// descriptors such as "@every 15m").
func NewJanitor(purger Purger, schedule string, recorder PurgeRecorder, logger *observability.Logger) (*Janitor, error) {
	j := &Janitor{
		purger:   purger,
		recorder: recorder,
		logger:   logger.WithField("component", "session_janitor"),
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout:  time.Minute,
	}

	if _, err := j.cron.AddFunc(schedule, j.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid session purge schedule %q: %w", schedule, err)
	}
	return j, nil
}

// RunOnce purges expired sessions immediately
func (j *Janitor) RunOnce() {
	defer observability.RecoverPanic(j.logger, "session purge")

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.purger.PurgeExpired(ctx, time.Now())
	if err != nil {
		j.logger.WithError(err).Error("Failed to purge expired sessions")
		return
	}
	if j.recorder != nil {
		j.recorder.RecordSessionsPurged(n)
	}
	j.logger.WithField("purged", n).Debug("Expired sessions purged")
}

// Run starts the scheduler and blocks until ctx is done
func (j *Janitor) Run(ctx context.Context) error {
	j.cron.Start()
	<-ctx.Done()
	stopped := j.cron.Stop()
	<-stopped.Done()
	return nil
}
