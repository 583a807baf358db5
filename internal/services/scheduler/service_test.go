package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"herald/internal/services/broadcast"
	"herald/internal/storage"
	"herald/internal/transport"
	"herald/pkg/logx"
)

type fakeJobs struct {
	mu        sync.Mutex
	jobs      map[string]storage.Job
	insertErr error
	deleteErr error
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]storage.Job{}}
}

func (f *fakeJobs) InsertJob(ctx context.Context, j storage.Job) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[j.ID] = j
	return nil
}

func (f *fakeJobs) DueJobs(ctx context.Context, asOf time.Time) ([]storage.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []storage.Job
	for _, j := range f.jobs {
		if !j.DueAt.After(asOf) {
			due = append(due, j)
		}
	}
	return due, nil
}

func (f *fakeJobs) DeleteJob(ctx context.Context, id string) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[id]; !ok {
		return false, nil
	}
	delete(f.jobs, id)
	return true, nil
}

func (f *fakeJobs) DeleteAllJobs(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.jobs)
	f.jobs = map[string]storage.Job{}
	return n, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []broadcast.Job
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, job broadcast.Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
}

func (d *fakeDispatcher) dispatched() []broadcast.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]broadcast.Job(nil), d.jobs...)
}

func testService(jobs *fakeJobs, disp *fakeDispatcher) *Service {
	return New(Config{}, jobs, disp, logx.Nop())
}

func TestScheduleStoresAbsoluteDueTime(t *testing.T) {
	jobs := newFakeJobs()
	s := testService(jobs, &fakeDispatcher{})
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	stored, err := s.Schedule(context.Background(), broadcast.Job{
		Source:   transport.MessageRef{ChatID: 7, MessageID: 99},
		Mode:     broadcast.ModeForward,
		ReportTo: 42,
	}, 600*time.Second)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !stored.DueAt.Equal(t0.Add(600 * time.Second)) {
		t.Fatalf("due_at: want %v, got %v", t0.Add(600*time.Second), stored.DueAt)
	}
	if stored.ID == "" {
		t.Fatal("job id must be assigned")
	}

	// Not due one second early; due exactly at the boundary.
	if due, _ := jobs.DueJobs(context.Background(), t0.Add(599*time.Second)); len(due) != 0 {
		t.Fatalf("job must not be due before due_at, got %v", due)
	}
	if due, _ := jobs.DueJobs(context.Background(), t0.Add(600*time.Second)); len(due) != 1 {
		t.Fatalf("job must be due at due_at, got %v", due)
	}
}

func TestScheduleInsertFailure(t *testing.T) {
	jobs := newFakeJobs()
	jobs.insertErr = errors.New("store down")
	s := testService(jobs, &fakeDispatcher{})

	if _, err := s.Schedule(context.Background(), broadcast.Job{ReportTo: 42}, time.Minute); err == nil {
		t.Fatal("want error when the store rejects the insert")
	}
}

func TestTickDispatchesDueJobExactlyOnce(t *testing.T) {
	jobs := newFakeJobs()
	disp := &fakeDispatcher{}
	s := testService(jobs, disp)
	t0 := time.Now()
	s.now = func() time.Time { return t0 }

	stored, err := s.Schedule(context.Background(), broadcast.Job{
		Source:   transport.MessageRef{ChatID: 7, MessageID: 99},
		Mode:     broadcast.ModeForward,
		ReportTo: 42,
	}, 0)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	s.tick(context.Background())
	s.tick(context.Background())

	got := disp.dispatched()
	if len(got) != 1 {
		t.Fatalf("want exactly one dispatch, got %d", len(got))
	}
	if got[0].ID != stored.ID || got[0].Source.ChatID != 7 || got[0].Source.MessageID != 99 {
		t.Fatalf("dispatched job mismatch: %+v", got[0])
	}
	if due, _ := jobs.DueJobs(context.Background(), t0.Add(time.Hour)); len(due) != 0 {
		t.Fatalf("fired job must be gone from the store, got %v", due)
	}
}

func TestTickSkipsJobNotYetDue(t *testing.T) {
	jobs := newFakeJobs()
	disp := &fakeDispatcher{}
	s := testService(jobs, disp)
	t0 := time.Now()
	s.now = func() time.Time { return t0 }

	if _, err := s.Schedule(context.Background(), broadcast.Job{ReportTo: 42}, time.Hour); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	s.tick(context.Background())

	if len(disp.dispatched()) != 0 {
		t.Fatal("job dispatched before its due time")
	}
	if due, _ := jobs.DueJobs(context.Background(), t0.Add(2*time.Hour)); len(due) != 1 {
		t.Fatal("pending job must remain stored")
	}
}

func TestTickDefersJobWhenClaimFails(t *testing.T) {
	jobs := newFakeJobs()
	disp := &fakeDispatcher{}
	s := testService(jobs, disp)
	t0 := time.Now()
	s.now = func() time.Time { return t0 }

	if _, err := s.Schedule(context.Background(), broadcast.Job{ReportTo: 42}, 0); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	jobs.deleteErr = errors.New("store down")
	s.tick(context.Background())
	if len(disp.dispatched()) != 0 {
		t.Fatal("job must not dispatch when the claim delete fails")
	}

	// Store recovers; the next tick picks the job up.
	jobs.deleteErr = nil
	s.tick(context.Background())
	if len(disp.dispatched()) != 1 {
		t.Fatalf("want one dispatch after recovery, got %d", len(disp.dispatched()))
	}
}

func TestCancelAllReportsCount(t *testing.T) {
	jobs := newFakeJobs()
	s := testService(jobs, &fakeDispatcher{})

	for i := 0; i < 3; i++ {
		if _, err := s.Schedule(context.Background(), broadcast.Job{ReportTo: 42}, time.Hour); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	n, err := s.CancelAll(context.Background())
	if err != nil {
		t.Fatalf("CancelAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3 cancelled, got %d", n)
	}
	n, err = s.CancelAll(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second CancelAll: want 0, got %d (%v)", n, err)
	}
}
