// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"errors"
	"strconv"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// Kind categorizes transport errors for handling.
type Kind int

const (
	// KindNetwork is a failure to reach the server or a broken stream.
	KindNetwork Kind = iota
	// KindInvalidResponse is a response that is not the raw-text protocol.
	KindInvalidResponse
	// KindBadStatus is a non-2xx status. The body is attached.
	KindBadStatus
	// KindCanceled means the caller canceled the request context.
	KindCanceled
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindInvalidResponse:
		return "invalid_response"
	case KindBadStatus:
		return "bad_status"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error represents a classified transport failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Kind == KindBadStatus {
		return "bad response: " + strconv.Itoa(e.StatusCode) + ", " + e.Body
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func isKind(err error, kind Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// IsNetwork reports whether err is a network failure.
func IsNetwork(err error) bool { return isKind(err, KindNetwork) }

// IsInvalidResponse reports whether err is a protocol mismatch.
func IsInvalidResponse(err error) bool { return isKind(err, KindInvalidResponse) }

// IsBadStatus reports whether err is a non-2xx response.
func IsBadStatus(err error) bool { return isKind(err, KindBadStatus) }

// IsCanceled reports whether err came from caller cancellation.
func IsCanceled(err error) bool { return isKind(err, KindCanceled) }

// StatusCode returns the HTTP status carried by a bad-status error, or 0.
func StatusCode(err error) int {
	var te *Error
	if errors.As(err, &te) && te.Kind == KindBadStatus {
		return te.StatusCode
	}
	return 0
}
