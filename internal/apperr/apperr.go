// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package apperr defines the closed set of domain error kinds used at the
// boundaries of external calls.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error kind.
type Code string

const (
	CodeConfig     Code = "config"     // missing or invalid configuration; fatal at startup
	CodeAuth       Code = "auth"       // publish-channel login failure; fatal before item loop
	CodeNetwork    Code = "network"    // HTTP call failure
	CodeParse      Code = "parse"      // response body couldn't be interpreted
	CodeValidation Code = "validation" // generated text failed validation; recoverable
	CodeUpload     Code = "upload"     // image upload/encode failure; degrades to no image
	CodeUnknown    Code = "unknown"
)

// Error carries a domain error kind along with free-form context.
type Error struct {
	Code Code
	Op   string // the operation that failed, e.g. "bluesky.login"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a domain error kind.
func New(code Code, op string, err error) error {
	return &Error{Code: code, Op: op, Err: err}
}

// Newf constructs a domain error from a format string.
func Newf(code Code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the error kind from err, or CodeUnknown if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the given error kind.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// Fatal reports whether err must abort the process with a non-zero exit.
// Only configuration and authentication errors qualify.
func Fatal(err error) bool {
	switch CodeOf(err) {
	case CodeConfig, CodeAuth:
		return true
	}
	return false
}
