package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds means the spendable balance is below the post cost.
	ErrInsufficientFunds = errors.New("insufficient chaos points")
	// ErrNoPendingPost means confirm/cancel was called with nothing pending.
	ErrNoPendingPost = errors.New("no pending chaos post")
	// ErrChannelUnavailable means a configured channel could not be resolved.
	ErrChannelUnavailable = errors.New("channel unavailable")
	// ErrEmptyLedger means the leaderboard has nothing to render.
	ErrEmptyLedger = errors.New("ledger has no entries")
)

// ValidationError reports bad user input. Reason is user-facing and names
// the valid range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CorruptStateError reports an invalid persisted record. It is fatal at
// startup: the process must not continue with partially validated data.
type CorruptStateError struct {
	Source string
	Err    error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt %s state: %v", e.Source, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }
