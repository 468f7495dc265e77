package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mescon/Cachearr/internal/config"
	"github.com/mescon/Cachearr/internal/logger"
)

// Runner is one schedulable unit of work; *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context) error
}

var _ Runner = (*Pipeline)(nil)

// intervalSchedule fires every interval, with fire times rounded up to the
// next multiple of tick so small execution delays do not accumulate.
type intervalSchedule struct {
	interval time.Duration
	tick     time.Duration
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	next := t.Add(s.interval)
	if s.tick <= 0 {
		return next
	}
	if aligned := next.Truncate(s.tick); aligned.Before(next) {
		return aligned.Add(s.tick)
	}
	return next
}

type SchedulerService struct {
	cron     *cron.Cron
	runner   Runner
	schedule cron.Schedule
	job      cron.Job
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	jobs     map[string]cron.EntryID
	started  bool
}

// NewSchedulerService builds the pipeline schedule from cfg: the cron
// expression in cfg.Schedule when set, otherwise every cfg.RunInterval
// aligned to cfg.CheckInterval.
func NewSchedulerService(runner Runner, cfg *config.Config) (*SchedulerService, error) {
	var schedule cron.Schedule
	if cfg.Schedule != "" {
		parsed, err := cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.Schedule, err)
		}
		schedule = parsed
	} else {
		if cfg.RunInterval <= 0 {
			return nil, fmt.Errorf("run interval must be positive, got %s", cfg.RunInterval)
		}
		schedule = intervalSchedule{interval: cfg.RunInterval, tick: cfg.CheckInterval}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SchedulerService{
		cron:     cron.New(cron.WithLogger(logger.CronLogger{})),
		runner:   runner,
		schedule: schedule,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]cron.EntryID),
	}
	s.job = cron.NewChain(
		cron.SkipIfStillRunning(logger.CronLogger{}),
		cron.Recover(logger.CronLogger{}),
	).Then(cron.FuncJob(s.runPipeline))
	return s, nil
}

// Start schedules the pipeline, runs it once right away in the background
// and starts the cron loop.
func (s *SchedulerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	logger.Infof("Starting Scheduler Service...")
	s.jobs["pipeline"] = s.cron.Schedule(s.schedule, s.job)
	s.cron.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()

	if next := s.cron.Entry(s.jobs["pipeline"]).Next; !next.IsZero() {
		logger.Infof("Next scheduled run at %s", next.Format(time.RFC3339))
	}
}

// Stop cancels a running pipeline and waits for every job to return.
func (s *SchedulerService) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	logger.Infof("Scheduler stopped")
}

// RunNow runs the pipeline job synchronously through the same wrappers as
// scheduled runs. It returns at once when a run is already in progress.
func (s *SchedulerService) RunNow() {
	s.job.Run()
}

// AddFunc registers a housekeeping job under name using a standard cron
// expression or descriptor such as "@daily".
func (s *SchedulerService) AddFunc(spec, name string, fn func()) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
	}
	s.jobs[name] = s.cron.Schedule(schedule, cron.NewChain(
		cron.SkipIfStillRunning(logger.CronLogger{}),
		cron.Recover(logger.CronLogger{}),
	).Then(cron.FuncJob(func() {
		logger.Debugf("Running scheduled job %s", name)
		fn()
	})))
	return nil
}

// NextRun returns when the pipeline fires next, or zero before Start.
func (s *SchedulerService) NextRun() time.Time {
	s.mu.Lock()
	id, ok := s.jobs["pipeline"]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *SchedulerService) runPipeline() {
	err := s.runner.Run(s.ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Infof("Pipeline run cancelled")
	case errors.Is(err, ErrRunInProgress):
		logger.Infof("Pipeline run skipped: %v", err)
	default:
		logger.Errorf("Pipeline run failed: %v", err)
	}
}
