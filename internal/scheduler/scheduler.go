package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"PBRSentinel/internal/job"
)

// Runner is the one-shot pipeline the scheduler triggers.
type Runner interface {
	Run(ctx context.Context) (*job.Result, error)
}

// Scheduler triggers independent runs at cron times. A firing that arrives while
// the previous run is still going is skipped, whether that run came from cron or RunNow.
type Scheduler struct {
	Cron   *cron.Cron
	Runner Runner
	Ctx    context.Context

	running sync.Mutex
}

// NewScheduler creates a Scheduler evaluating cron specs (with seconds) in loc.
func NewScheduler(ctx context.Context, runner Runner, loc *time.Location) *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Runner: runner,
		Ctx:    ctx,
	}
}

// RegisterAll registers one run per cron spec.
func (s *Scheduler) RegisterAll(specs []string) error {
	if len(specs) == 0 {
		return fmt.Errorf("no schedule configured")
	}
	for _, spec := range specs {
		if _, err := s.Cron.AddFunc(spec, s.runTask); err != nil {
			return fmt.Errorf("register run %q: %w", spec, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	for _, e := range s.Cron.Entries() {
		log.Info().Time("next", e.Next).Msg("run scheduled")
	}
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes one run immediately (RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.runTask()
}

func (s *Scheduler) runTask() {
	if s.Ctx.Err() != nil {
		return
	}
	if !s.running.TryLock() {
		log.Info().Msg("previous run still in progress, skipping")
		return
	}
	defer s.running.Unlock()
	res, err := s.Runner.Run(s.Ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled run failed")
		return
	}
	if res.Skipped {
		log.Info().Str("reason", res.SkipReason).Msg("scheduled run skipped")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
