// Package apperr defines the error kinds shared by the client, service and
// HTTP layers so callers branch on Kind instead of message text.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindNetwork covers transport failures, timeouts, 5xx and undecodable bodies.
	KindNetwork Kind = "network"
	// KindValidation is a client-side check that failed before any call was made.
	KindValidation Kind = "validation"
	// KindRejected is a business refusal returned by the backend (success=false or 4xx).
	KindRejected Kind = "rejected"
	KindNotFound Kind = "not_found"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Network(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

func Rejected(op, message string) *Error {
	return &Error{Kind: KindRejected, Op: op, Message: message}
}

func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage is the text shown to the member: the backend's message for
// rejections and validation failures, a generic one otherwise.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindValidation, KindRejected, KindNotFound:
			if e.Message != "" {
				return e.Message
			}
		}
		return "service temporarily unavailable, please try again"
	}
	return "unexpected error"
}
