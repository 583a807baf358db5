package transport

import (
	"errors"
	"fmt"
)

// PermanentError marks a per-recipient send failure that will not succeed on
// a later attempt (recipient blocked the bot, account deleted, chat gone).
// The dispatcher prunes such recipients from the directory. Every other send
// error is treated as transient: counted, not pruned.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent send failure: %s: %v", e.Reason, e.Err)
	}
	return "permanent send failure: " + e.Reason
}

func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(reason string, err error) error {
	return &PermanentError{Reason: reason, Err: err}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
