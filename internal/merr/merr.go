// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package merr carries the request-facing error kinds the mediator's
// core surfaces to its HTTP and streaming layers.
package merr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way the HTTP layer needs to map it to
// a status code (spec §7).
type Kind string

const (
	Malformed          Kind = "Malformed"
	InvalidState       Kind = "InvalidState"
	NoCompatibleCrypto Kind = "NoCompatibleCrypto"
	Unsupported        Kind = "Unsupported"
	DIDNotResolved     Kind = "DIDNotResolved"
	DIDUrlNotFound     Kind = "DIDUrlNotFound"
	ACLDenied          Kind = "ACLDenied"
	PermissionError    Kind = "PermissionError"
	MessageExpired     Kind = "MessageExpired"
	RequestDataError   Kind = "RequestDataError"
	DatabaseError      Kind = "DatabaseError"
	ConfigError        Kind = "ConfigError"
	AuthenticationError Kind = "AuthenticationError"
)

// HTTPStatus maps a Kind to the status code the REST surface returns.
func (k Kind) HTTPStatus() int {
	switch k {
	case Malformed, RequestDataError, ConfigError:
		return 400
	case AuthenticationError:
		return 401
	case ACLDenied, PermissionError:
		return 403
	case DIDNotResolved, DIDUrlNotFound:
		return 404
	case MessageExpired:
		return 410
	case NoCompatibleCrypto, Unsupported:
		return 422
	case InvalidState, DatabaseError:
		return 500
	default:
		return 500
	}
}

// Error is the error type the core returns; it carries a Kind, a
// human-readable message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts the Kind of err if it is (or wraps) a *merr.Error,
// defaulting to InvalidState for errors that did not originate here.
func As(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return InvalidState
}

// Is reports whether err is a *merr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}
