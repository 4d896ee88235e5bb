// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package errors implements the restuned error taxonomy: a small set of
// Kinds that every subsystem reports through, so a caller can branch on
// "what kind of failure" without string-matching a message.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure. Kinds are stable across restuned
// releases; callers are expected to switch on Kind, not on message text.
type Kind int

const (
	// KindUnknown is the zero value; never constructed deliberately.
	KindUnknown Kind = iota
	// KindBadArg covers malformed or out-of-range request arguments.
	KindBadArg
	// KindAlloc covers allocation failures (arena exhaustion, timer
	// slot exhaustion).
	KindAlloc
	// KindNotFound covers missing resources, handles, or registry
	// entries.
	KindNotFound
	// KindPermission covers a client lacking permission for a
	// resource or operation.
	KindPermission
	// KindIO covers kernel I/O failures (sysfs read/write, cgroup
	// move).
	KindIO
	// KindParse covers config/filter-list/per-app config parse
	// failures.
	KindParse
	// KindTopology covers logical-to-physical translation failures.
	KindTopology
	// KindOverCapacity covers bounded-queue overflow.
	KindOverCapacity
	// KindRateLimited covers a request rejected for exceeding a rate
	// limit.
	KindRateLimited
	// KindFatalInit covers unrecoverable startup failures that must
	// abort the daemon.
	KindFatalInit
)

func (k Kind) String() string {
	switch k {
	case KindBadArg:
		return "badArg"
	case KindAlloc:
		return "memAlloc"
	case KindNotFound:
		return "fileNotFound"
	case KindPermission:
		return "permission"
	case KindIO:
		return "socketOp"
	case KindParse:
		return "yamlParse"
	case KindTopology:
		return "resourceNotSupported"
	case KindOverCapacity:
		return "moduleInit"
	case KindRateLimited:
		return "rateLimited"
	case KindFatalInit:
		return "moduleInit"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across package boundaries in
// restuned. It carries a Kind for programmatic handling and wraps an
// optional underlying cause for diagnostics.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "cct.insertResource"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers
// can do errors.Is(err, errors.New(KindNotFound, "", "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an Error that wraps an underlying cause.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, or KindUnknown if err is not (or
// does not wrap) a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
