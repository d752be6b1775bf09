package source

// # Error Codes Reference
//
// Errors shown to users carry a code they can quote to support.
//
//	SRC001 - Backend unavailable: could not load data
//	SRC002 - Backend timeout: the request took too long
//	SRC003 - Request cancelled
//	NF001  - Record not found
//	VAL001 - Backend rejected the data (message shown verbatim)
//	FMT001 - Fields failed client-side format checks
//	DB001  - Duplicate record
//	DB002  - Database busy (deadlock or locked file)
//	DB003  - Database schema missing
//	ERR000 - Anything else; check the logs for the technical error

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/crm/internal/validate"
)

// UserMessage is an error rendered for an end user.
type UserMessage struct {
	Message string // What went wrong
	Action  string // What the user can do
	Code    string // Reference for support
}

// errorPattern maps a lowercase substring of a technical error to a message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgTransport = UserMessage{
		Message: "Failed to load data",
		Action:  "Please try again in a few moments",
		Code:    "SRC001",
	}
	msgTimeout = UserMessage{
		Message: "The backend took too long to respond",
		Action:  "Please try again",
		Code:    "SRC002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "SRC003",
	}
	msgNotFound = UserMessage{
		Message: "Record not found",
		Action:  "It may have been deleted. Return to the list",
		Code:    "NF001",
	}
	msgFormat = UserMessage{
		Message: "Some fields are invalid",
		Action:  "Fix the highlighted fields and submit again",
		Code:    "FMT001",
	}
)

var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A company with these details already exists",
			Action:  "Edit the existing company instead",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "A company with these details already exists",
			Action:  "Edit the existing company instead",
			Code:    "DB001",
		},
	},
	{pattern: "connection refused", msg: msgTransport},
	{pattern: "connection reset", msg: msgTransport},
	{pattern: "no such host", msg: msgTransport},
	{pattern: "deadline exceeded", msg: msgTimeout},
	{pattern: "timeout", msg: msgTimeout},
	{pattern: "context canceled", msg: msgCancelled},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "The database was busy",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "The database was busy",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "no such table",
		msg: UserMessage{
			Message: "The company table is missing",
			Action:  "Run the import or migrations first",
			Code:    "DB003",
		},
	},
	{
		pattern: "does not exist",
		msg: UserMessage{
			Message: "The company table is missing",
			Action:  "Run the import or migrations first",
			Code:    "DB003",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message. Typed errors from the
// taxonomy are matched first; a ValidationError's message is passed through
// verbatim. Other errors are matched against known patterns
// (case-insensitive), falling back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		ve *ValidationError
		fe *validate.FormatError
		te *TransportError
	)
	switch {
	case IsNotFound(err):
		return msgNotFound
	case errors.As(err, &ve):
		return UserMessage{Message: ve.Message, Action: "Correct the data and try again", Code: "VAL001"}
	case errors.As(err, &fe):
		return msgFormat
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.As(err, &te):
		if te.Err != nil {
			if m, ok := matchPattern(te.Err); ok && m.Code != "DB003" {
				return m
			}
		}
		return msgTransport
	}

	if m, ok := matchPattern(err); ok {
		return m
	}
	return defaultMessage
}

func matchPattern(err error) (UserMessage, bool) {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
