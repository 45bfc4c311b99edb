package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/balloon-tracker/internal/log"
	"github.com/i474232898/balloon-tracker/internal/tracker"
)

// RefreshInterval is how often balloon state is rebuilt from the gateway.
const RefreshInterval = 10 * time.Minute

// Refresher runs one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) (tracker.CycleReport, bool)
}

// Scheduler periodically refreshes balloon state.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	interval  time.Duration
}

// New creates a new Scheduler. The refresher owns the cycle deadline.
func New(service Refresher) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		interval:  RefreshInterval,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first cycle runs immediately. SingletonMode keeps a slow cycle from being
// overlapped by the next tick.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	report, shared := s.service.Refresh(context.Background())
	if shared {
		log.Infow("scheduler: joined in-flight refresh", "cycle", report.ID)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
