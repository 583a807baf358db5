package broadcast

import (
	"context"
	"errors"

	"herald/internal/transport"
)

// ErrNoRecipients aborts a run against an empty directory before any send.
var ErrNoRecipients = errors.New("no recipients to send to")

type Mode string

const (
	ModeForward Mode = "forward"
	ModeCopy    Mode = "copy"
)

// ModeFor picks the send operation: buttons force a copy, because Telegram
// cannot attach a keyboard to a forwarded message.
func ModeFor(buttons []transport.Button) Mode {
	if len(buttons) > 0 {
		return ModeCopy
	}
	return ModeForward
}

// Job is one fully-resolved broadcast ready to run.
type Job struct {
	ID       string
	Source   transport.MessageRef
	Mode     Mode
	Buttons  []transport.Button
	ReportTo int64
}

// Result summarizes one finished run. Succeeded+Failed equals the number of
// recipients enumerated at the start of the run.
type Result struct {
	Total     int
	Succeeded int
	Failed    int
	Pruned    []int64
}

type Config struct {
	RatePerSec int
}

// Directory is the slice of the subscriber store the engine needs.
type Directory interface {
	SubscriberIDs(ctx context.Context) ([]int64, error)
	RemoveSubscriber(ctx context.Context, id int64) error
}
