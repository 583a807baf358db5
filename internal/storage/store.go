package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Store is the persistence API used by the bot, dispatcher, and scheduler.
type Store interface {
	// UpsertSubscriber inserts or refreshes a subscriber and reports whether
	// it was newly created.
	UpsertSubscriber(ctx context.Context, s Subscriber) (created bool, err error)
	// RemoveSubscriber deletes a subscriber if present. Missing is not an error.
	RemoveSubscriber(ctx context.Context, id int64) error
	GetSubscriber(ctx context.Context, id int64) (Subscriber, error)
	SubscriberIDs(ctx context.Context) ([]int64, error)
	CountSubscribers(ctx context.Context) (int, error)

	InsertJob(ctx context.Context, j Job) error
	// DueJobs lists jobs with DueAt <= asOf, oldest first. It does not mutate
	// anything; calling it twice without deletes returns the same set.
	DueJobs(ctx context.Context, asOf time.Time) ([]Job, error)
	// DeleteJob removes one job and reports whether this call removed it.
	// claimed=false means another caller got there first (or the id is unknown).
	DeleteJob(ctx context.Context, id string) (claimed bool, err error)
	// DeleteAllJobs removes every stored job and returns how many were removed.
	DeleteAllJobs(ctx context.Context) (int, error)

	Close() error
}

// Open initializes the SQLite store. A failure here is a configuration error:
// the process must not come up with a half-initialized store.
func Open(cfg Config, log zerolog.Logger) (Store, error) {
	return openSQLite(cfg, log)
}
