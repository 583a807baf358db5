package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"herald/internal/transport"
)

// Run executes one broadcast synchronously and returns its result. Most
// callers want Dispatch instead; Run is exported for the scheduler-free
// paths and for tests.
func (s *Service) Run(ctx context.Context, job Job) (Result, error) {
	start := time.Now()
	s.mu.Lock()
	rps := s.cfg.RatePerSec
	lim := s.limiter
	s.mu.Unlock()

	ids, err := s.dir.SubscriberIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing subscribers: %w", err)
	}
	if len(ids) == 0 {
		s.report(job.ReportTo, "The subscriber list is empty. Broadcast cancelled.")
		return Result{}, ErrNoRecipients
	}

	res := Result{Total: len(ids)}
	s.log.Info().Str("job", job.ID).Str("mode", string(job.Mode)).Int("total", res.Total).Msg("broadcast started")
	s.report(job.ReportTo, fmt.Sprintf(
		"🚀 *Broadcast started*\n\n"+
			"Operation: *%s*\n"+
			"Sending to *%d* subscribers (rate: %d msg/sec).\n\n"+
			"You will receive a final report when it completes.",
		strings.ToUpper(string(job.Mode)), res.Total, rps))

	for _, id := range ids {
		// Fixed inter-send pause; this is the only throttle in the run.
		if err := lim.Wait(ctx); err != nil {
			return res, err
		}
		switch err := s.sendOne(ctx, id, job); {
		case err == nil:
			res.Succeeded++
		case transport.IsPermanent(err):
			res.Failed++
			res.Pruned = append(res.Pruned, id)
			s.log.Info().Str("job", job.ID).Int64("subscriber", id).Err(err).Msg("removing unreachable subscriber")
			if rerr := s.dir.RemoveSubscriber(ctx, id); rerr != nil {
				// Never abort the run over a failed prune.
				s.log.Error().Str("job", job.ID).Int64("subscriber", id).Err(rerr).Msg("could not remove subscriber")
			}
		default:
			res.Failed++
			s.log.Warn().Str("job", job.ID).Int64("subscriber", id).Err(err).Msg("send failed")
		}
	}

	s.log.Info().Str("job", job.ID).Int("succeeded", res.Succeeded).Int("failed", res.Failed).
		Dur("took", time.Since(start)).Msg("broadcast finished")
	s.report(job.ReportTo, fmt.Sprintf(
		"✅ *Broadcast finished*\n\n"+
			"Delivered: *%d*\n"+
			"Failed: *%d*\n"+
			"(Blocked and deactivated subscribers were removed automatically.)",
		res.Succeeded, res.Failed))
	return res, nil
}

func (s *Service) sendOne(ctx context.Context, to int64, job Job) error {
	if job.Mode == ModeCopy {
		return s.client.Copy(ctx, to, job.Source, job.Buttons)
	}
	return s.client.Forward(ctx, to, job.Source)
}

func (s *Service) report(to int64, text string) {
	if _, err := s.client.SendText(context.Background(), to, text, mdOpts()); err != nil {
		s.log.Warn().Int64("chat", to).Err(err).Msg("could not deliver broadcast report")
	}
}
