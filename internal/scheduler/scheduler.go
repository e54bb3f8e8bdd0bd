package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the recurring maintenance jobs: the nightly usage
// report and the rate-counter prune.
type Scheduler struct {
	cron       *cron.Cron
	ctx        context.Context
	cancel     context.CancelFunc
	reportFunc func(ctx context.Context) error
	pruneFunc  func(ctx context.Context) error
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

func (s *Scheduler) SetPruneFunction(f func(ctx context.Context) error) {
	s.pruneFunc = f
}

func (s *Scheduler) Start() error {
	if s.reportFunc != nil {
		// Daily at 21:00 UTC
		if _, err := s.cron.AddFunc("0 21 * * *", func() {
			if err := s.reportFunc(s.ctx); err != nil {
				log.Printf("daily report generation failed: %v", err)
			}
		}); err != nil {
			return err
		}
	}
	if s.pruneFunc != nil {
		// Daily at 03:30 UTC, off-peak
		if _, err := s.cron.AddFunc("30 3 * * *", func() {
			if err := s.pruneFunc(s.ctx); err != nil {
				log.Printf("rate counter prune failed: %v", err)
			}
		}); err != nil {
			return err
		}
	}
	s.cron.Start()
	log.Printf("scheduler started with %d job(s)", len(s.cron.Entries()))
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
