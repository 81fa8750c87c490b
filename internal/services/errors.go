// Package services defines the business logic for catalog synchronization,
// delta computation, daily aggregation, analytics queries, and the chat
// assistant. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrLockConflict indicates another sync execution currently holds the
	// job lease; the caller should not retry until it completes.
	ErrLockConflict = errors.New("sync already running")

	// ErrPrecondition indicates an operation's inputs do not satisfy its
	// contract (missing run, empty snapshot set, failed baseline). Wrapped
	// with detail via fmt.Errorf("%w: ...", ErrPrecondition).
	ErrPrecondition = errors.New("precondition failed")

	// ErrRunNotFound indicates the referenced sync run does not exist.
	ErrRunNotFound = errors.New("sync run not found")

	// ErrInvalidArgument indicates a request parameter is outside the
	// accepted set (bad mode, bad scope, unparseable date).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrItemNotFound indicates the requested catalog item does not exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrEmptyMessage is returned when a chat request contains no message.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrChatDisabled is returned when the chat assistant has no API key
	// configured.
	ErrChatDisabled = errors.New("chat assistant is not configured")
)
