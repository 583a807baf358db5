// Package scheduler makes deferred broadcasts durable: confirmed delayed
// sends are written to the job store with an absolute due timestamp, and a
// periodic poll claims due jobs and hands each to the dispatch engine exactly
// once. Because the store survives restarts, so do scheduled broadcasts.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"herald/internal/services/broadcast"
	"herald/internal/storage"
	"herald/internal/transport"
)

const (
	defaultPollInterval = 60 * time.Second
	defaultStartupDelay = 10 * time.Second
)

type Config struct {
	PollInterval time.Duration
	StartupDelay time.Duration
}

// Jobs is the slice of the store the scheduler needs.
type Jobs interface {
	InsertJob(ctx context.Context, j storage.Job) error
	DueJobs(ctx context.Context, asOf time.Time) ([]storage.Job, error)
	DeleteJob(ctx context.Context, id string) (claimed bool, err error)
	DeleteAllJobs(ctx context.Context) (int, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, job broadcast.Job)
}

type Service struct {
	cfg        Config
	jobs       Jobs
	dispatcher Dispatcher
	log        zerolog.Logger

	mu         sync.Mutex
	c          *cron.Cron
	runCtx     context.Context
	runCancel  context.CancelFunc
	startupTmr *time.Timer

	now func() time.Time
}

func New(cfg Config, jobs Jobs, dispatcher Dispatcher, log zerolog.Logger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.StartupDelay <= 0 {
		cfg.StartupDelay = defaultStartupDelay
	}
	return &Service{cfg: cfg, jobs: jobs, dispatcher: dispatcher, log: log, now: time.Now}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	runCtx := s.runCtx

	s.c = cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	_, _ = s.c.AddFunc("@every "+s.cfg.PollInterval.String(), func() { s.tick(runCtx) })

	// One catch-up poll shortly after startup so jobs that came due while the
	// process was down do not wait a full interval.
	s.startupTmr = time.AfterFunc(s.cfg.StartupDelay, func() { s.tick(runCtx) })

	s.c.Start()
	s.log.Info().Dur("poll_interval", s.cfg.PollInterval).Dur("startup_delay", s.cfg.StartupDelay).Msg("scheduler started")
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	tmr := s.startupTmr
	s.startupTmr = nil
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	if tmr != nil {
		tmr.Stop()
	}
	stopped := c.Stop()
	if cancel != nil {
		cancel()
	}
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	s.log.Info().Msg("scheduler stopped")
}

// Schedule stores job for execution delay from now. The due timestamp is
// computed here, once, and stored absolutely; it is never recomputed.
func (s *Service) Schedule(ctx context.Context, job broadcast.Job, delay time.Duration) (storage.Job, error) {
	now := s.now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	stored := storage.Job{
		ID:         job.ID,
		SourceChat: job.Source.ChatID,
		MessageID:  job.Source.MessageID,
		Mode:       string(job.Mode),
		Buttons:    job.Buttons,
		DueAt:      now.Add(delay),
		ReportTo:   job.ReportTo,
		CreatedAt:  now,
	}
	if err := s.jobs.InsertJob(ctx, stored); err != nil {
		return storage.Job{}, fmt.Errorf("storing scheduled broadcast: %w", err)
	}
	s.log.Info().Str("job", stored.ID).Time("due_at", stored.DueAt).Msg("broadcast scheduled")
	return stored, nil
}

// CancelAll removes every stored job in one batch and returns the count. It
// does not touch jobs already claimed by a running tick.
func (s *Service) CancelAll(ctx context.Context) (int, error) {
	n, err := s.jobs.DeleteAllJobs(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int("count", n).Msg("scheduled broadcasts cancelled")
	return n, nil
}

// tick claims and dispatches every due job. A job is dispatched only after
// its delete succeeded, so a store hiccup delays a job to the next tick but
// can never duplicate it.
func (s *Service) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("panic in scheduler tick")
		}
	}()

	due, err := s.jobs.DueJobs(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("listing due jobs failed")
		return
	}
	for _, j := range due {
		claimed, err := s.jobs.DeleteJob(ctx, j.ID)
		if err != nil {
			s.log.Error().Str("job", j.ID).Err(err).Msg("claiming due job failed; deferred to next tick")
			continue
		}
		if !claimed {
			continue
		}
		s.log.Info().Str("job", j.ID).Time("due_at", j.DueAt).Msg("dispatching scheduled broadcast")
		s.dispatcher.Dispatch(ctx, broadcast.Job{
			ID:       j.ID,
			Source:   transport.MessageRef{ChatID: j.SourceChat, MessageID: j.MessageID},
			Mode:     broadcast.Mode(j.Mode),
			Buttons:  j.Buttons,
			ReportTo: j.ReportTo,
		})
	}
}
