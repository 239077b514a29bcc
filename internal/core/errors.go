package core

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("parse error")
	// ErrIO is matched by every *IOError.
	ErrIO = errors.New("io error")
	// ErrEmptyResult is returned when an aggregate needs at least one
	// transaction and the selection is empty.
	ErrEmptyResult = errors.New("empty result")
)

// ParseError reports a malformed row or header in a ledger file.
// Line is 1-based and counts the header; zero means the header itself.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line == 0 && e.Column != "":
		return fmt.Sprintf("parse header: column %q: %v", e.Column, e.Err)
	case e.Column != "":
		return fmt.Sprintf("parse line %d: column %q value %q: %v", e.Line, e.Column, e.Value, e.Err)
	default:
		return fmt.Sprintf("parse line %d: %v", e.Line, e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// IOError reports a failure to read or write a ledger file.
type IOError struct {
	Op   string // "read" or "write"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }
