// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package errors defines the error taxonomy used throughout imq.
package errors

import (
	"errors"
	"fmt"
)

// Is is a wrapper around the standard errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is a wrapper around the standard errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Unwrap is a wrapper around the standard errors.Unwrap.
func Unwrap(err error) error { return errors.Unwrap(err) }

// New is a wrapper around the standard errors.New.
func New(text string) error { return errors.New(text) }

// Op describes the operation, usually the package and method,
// in which an error occurred.
type Op string

// Kind identifies the category of an error, independent of the
// underlying cause.
type Kind int

const (
	Unspecified Kind = iota
	Internal
	Transport
	Decode
	ScriptLoad
	Config
	NotFound
	AlreadyExists
	FailedPrecondition
)

func (k Kind) String() string {
	switch k {
	case Internal:
		return "internal error"
	case Transport:
		return "transport error"
	case Decode:
		return "decode error"
	case ScriptLoad:
		return "script load error"
	case Config:
		return "configuration error"
	case NotFound:
		return "not found"
	case AlreadyExists:
		return "already exists"
	case FailedPrecondition:
		return "failed precondition"
	default:
		return "unspecified error"
	}
}

// Error is the concrete error type produced by E.
type Error struct {
	Op   Op
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error from its arguments. Accepted argument types are
// Op, Kind, error, and string (wrapped with errors.New).
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case error:
			e.Err = a
		case string:
			e.Err = errors.New(a)
		default:
			panic(fmt.Sprintf("errors.E: unsupported argument type %T", a))
		}
	}
	return e
}

// KindOf returns the Kind of err if it (or something it wraps) is an *Error,
// otherwise Unspecified.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return Unspecified
}
