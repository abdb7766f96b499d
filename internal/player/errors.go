package player

import (
	"errors"
	"fmt"
)

// Sentinel errors for precondition failures the handlers translate into
// user-facing replies.
var (
	ErrEmptyQueue   = errors.New("queue is empty")
	ErrNotConnected = errors.New("not connected to a voice channel")
	ErrNotInVoice   = errors.New("requesting user is not in a voice channel")
)

// OutOfRangeError reports a 1-based queue position outside the current bounds.
type OutOfRangeError struct {
	Pos    int
	Length int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("position %d out of range for queue of length %d", e.Pos, e.Length)
}

// InvalidPositionError reports a position token that is neither numeric nor
// one of the "first"/"last" keywords.
type InvalidPositionError struct {
	Token string
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("%q is not a valid queue position", e.Token)
}
