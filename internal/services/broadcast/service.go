package broadcast

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"herald/internal/transport"
)

const defaultRatePerSec = 25

type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	client transport.Client
	dir    Directory
	log    zerolog.Logger

	runWG sync.WaitGroup
}

func New(cfg Config, client transport.Client, dir Directory, log zerolog.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = defaultRatePerSec
	}
	cfg.RatePerSec = rps
	return &Service{
		cfg:    cfg,
		client: client,
		dir:    dir,
		log:    log,
		// Burst of 1 turns the limiter into a fixed 1/rate pause between
		// consecutive sends. The limiter is shared across concurrent runs so
		// the ceiling is global, not per job.
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (s *Service) Apply(cfg Config) {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = defaultRatePerSec
	}
	cfg.RatePerSec = rps
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	s.mu.Unlock()
}

func (s *Service) RatePerSec() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.RatePerSec
}

// Dispatch starts the job as a detached background run and returns
// immediately. ctx should be the process context, not a request context: the
// run outlives the command that launched it. Any failure, panics included, is
// logged and reported to job.ReportTo; nothing escalates to the caller.
func (s *Service) Dispatch(ctx context.Context, job Job) {
	s.runWG.Add(1)
	go func() {
		defer s.runWG.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Str("job", job.ID).Interface("panic", r).Str("stack", string(debug.Stack())).Msg("panic in broadcast run")
				s.notifyFailure(job.ReportTo, fmt.Sprintf("internal error: %v", r))
			}
		}()
		_, err := s.Run(ctx, job)
		switch {
		case err == nil, errors.Is(err, ErrNoRecipients):
			// Run already told the operator everything there is to say.
		case errors.Is(err, context.Canceled):
			s.log.Info().Str("job", job.ID).Msg("broadcast run aborted by shutdown")
		default:
			s.log.Error().Str("job", job.ID).Err(err).Msg("broadcast run failed")
			s.notifyFailure(job.ReportTo, err.Error())
		}
	}()
}

// Wait blocks until all dispatched runs have finished.
func (s *Service) Wait() { s.runWG.Wait() }

func (s *Service) notifyFailure(reportTo int64, detail string) {
	_, err := s.client.SendText(context.Background(), reportTo,
		"⚠️ *Broadcast failed*\n\n"+detail, mdOpts())
	if err != nil {
		s.log.Error().Err(err).Msg("could not deliver failure notice")
	}
}

func mdOpts() *transport.SendOptions {
	return &transport.SendOptions{ParseMode: "Markdown"}
}
