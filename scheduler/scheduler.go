package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// CacheRefresher reloads a cache from its source of truth.
type CacheRefresher interface {
	RefreshCache(ctx context.Context) error
}

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func New(log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log,
	}
}

// ScheduleCacheRefresh reloads the stock catalog cache on spec, e.g. "@every 5m".
func (s *Scheduler) ScheduleCacheRefresh(spec string, r CacheRefresher) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.RefreshCache(ctx); err != nil {
			s.log.Warn("refreshing stock cache", "error", err)
			return
		}
		s.log.Debug("stock cache refreshed")
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
