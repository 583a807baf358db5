package storage

import (
	"errors"
	"time"

	"herald/internal/transport"
)

var ErrNotFound = errors.New("not found")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Subscriber is one broadcast recipient.
type Subscriber struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	SubscribedAt time.Time
}

// Job is a durably stored scheduled broadcast. DueAt is absolute; it is
// computed once at confirmation time and never recomputed.
type Job struct {
	ID         string
	SourceChat int64
	MessageID  int
	Mode       string // "forward" or "copy"
	Buttons    []transport.Button
	DueAt      time.Time
	ReportTo   int64
	CreatedAt  time.Time
}
