package confirm

import (
	"errors"
	"testing"
	"time"

	"herald/internal/services/broadcast"
	"herald/internal/transport"
)

func draft(id string) Pending {
	return Pending{Job: broadcast.Job{
		ID:       id,
		Source:   transport.MessageRef{ChatID: 1, MessageID: 10},
		Mode:     broadcast.ModeForward,
		ReportTo: 42,
	}}
}

func TestConfirmReleasesDraft(t *testing.T) {
	s := New(time.Minute)
	s.Propose(42, draft("a"))

	p, err := s.Confirm(42)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if p.Job.ID != "a" {
		t.Fatalf("unexpected draft: %q", p.Job.ID)
	}
	if _, err := s.Confirm(42); !errors.Is(err, ErrExpired) {
		t.Fatalf("second confirm: want ErrExpired, got %v", err)
	}
}

func TestConfirmWithNothingPending(t *testing.T) {
	s := New(time.Minute)
	if _, err := s.Confirm(42); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
}

func TestProposeOverwrites(t *testing.T) {
	s := New(time.Minute)
	s.Propose(42, draft("first"))
	s.Propose(42, draft("second"))

	p, err := s.Confirm(42)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if p.Job.ID != "second" {
		t.Fatalf("want latest proposal, got %q", p.Job.ID)
	}
}

func TestCancelDiscards(t *testing.T) {
	s := New(time.Minute)
	s.Propose(42, draft("a"))
	if !s.Cancel(42) {
		t.Fatal("Cancel: want true with a pending draft")
	}
	if s.Cancel(42) {
		t.Fatal("Cancel: want false with nothing pending")
	}
	if _, err := s.Confirm(42); !errors.Is(err, ErrExpired) {
		t.Fatalf("confirm after cancel: want ErrExpired, got %v", err)
	}
}

func TestPendingExpiresAfterTTL(t *testing.T) {
	s := New(10 * time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Propose(42, draft("a"))

	now = now.Add(10*time.Minute + time.Second)
	if _, err := s.Confirm(42); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired after ttl, got %v", err)
	}
}

func TestOperatorsAreIndependent(t *testing.T) {
	s := New(time.Minute)
	s.Propose(1, draft("one"))
	s.Propose(2, draft("two"))

	p, err := s.Confirm(2)
	if err != nil {
		t.Fatalf("Confirm(2): %v", err)
	}
	if p.Job.ID != "two" {
		t.Fatalf("wrong draft released: %q", p.Job.ID)
	}
	if _, err := s.Confirm(1); err != nil {
		t.Fatalf("Confirm(1): %v", err)
	}
}
