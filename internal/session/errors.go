package session

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Kind classifies a command failure for logging and reply selection.
type Kind string

const (
	KindUserInput    Kind = "USER_INPUT"
	KindPrecondition Kind = "PRECONDITION"
	KindExternal     Kind = "EXTERNAL_SERVICE"
	KindInternal     Kind = "INTERNAL"
)

// BotError is a classified command failure carrying the line shown to the
// user alongside the operator-facing detail.
type BotError struct {
	Kind    Kind
	Message string
	UserMsg string
	Cause   error
}

func (e *BotError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *BotError) Unwrap() error { return e.Cause }

// UserMessage returns the reply to show the user.
func (e *BotError) UserMessage() string { return e.UserMsg }

func userInput(userMsg string) *BotError {
	return &BotError{Kind: KindUserInput, Message: userMsg, UserMsg: userMsg}
}

func precondition(userMsg string) *BotError {
	return &BotError{Kind: KindPrecondition, Message: userMsg, UserMsg: userMsg}
}

func external(message, userMsg string, cause error) *BotError {
	return &BotError{Kind: KindExternal, Message: message, UserMsg: userMsg, Cause: cause}
}

// userFacing is any error that carries its own reply text.
type userFacing interface {
	UserMessage() string
}

// genericFailure is the reply for errors with no user-facing line of their
// own.
const genericFailure = "Something went wrong. Please try again."

// ErrorHandler logs command failures by severity and sends the user-facing
// line into the originating channel.
type ErrorHandler struct {
	gw  Gateway
	log zerolog.Logger
}

func NewErrorHandler(gw Gateway, log zerolog.Logger) *ErrorHandler {
	return &ErrorHandler{gw: gw, log: log}
}

// Handle logs err and replies into channelID. Nil errors are ignored.
func (h *ErrorHandler) Handle(err error, channelID string) {
	if err == nil {
		return
	}

	var botErr *BotError
	if errors.As(err, &botErr) {
		switch botErr.Kind {
		case KindUserInput, KindPrecondition:
			h.log.Debug().Err(err).Msg("command rejected")
		case KindExternal:
			h.log.Warn().Err(err).Msg("external service failure")
		default:
			h.log.Error().Err(err).Msg("command failed")
		}
	} else {
		h.log.Error().Err(err).Msg("command failed")
	}

	reply := genericFailure
	var uf userFacing
	if errors.As(err, &uf) {
		if msg := uf.UserMessage(); msg != "" {
			reply = msg
		}
	}
	if channelID != "" {
		h.gw.Send(channelID, reply)
	}
}
