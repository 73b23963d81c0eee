package model

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when the provider answers with zero rows.
var ErrNoData = errors.New("no data returned")

// FetchError is a transient provider failure. Throttling looks the same.
type FetchError struct {
	Code string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Code, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedDateError reports a date value that cannot be normalized.
type MalformedDateError struct {
	Value any
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("malformed date %v (%T)", e.Value, e.Value)
}

// InsufficientHistoryError marks a series too short to analyse.
type InsufficientHistoryError struct {
	Code string
	Have int
	Need int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("%s: insufficient history (%d bars, need %d)", e.Code, e.Have, e.Need)
}

// PersistenceError is a failed store write. The previous snapshot is intact.
type PersistenceError struct {
	Code string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Code, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
