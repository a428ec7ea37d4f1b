package core

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when a poll sequence runs out of attempts without an artifact
var ErrTimeout = errors.New("generation timed out")

// ParseError means a provider answered with something that is not the expected JSON
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s response: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SubmissionError is fatal for the current turn, the job was never accepted
type SubmissionError struct {
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Err == nil {
		return "submission failed: " + e.Reason
	}
	return fmt.Sprintf("submission failed: %s: %v", e.Reason, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

type FetchError struct {
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return "fetch failed: " + e.Reason
	}
	return fmt.Sprintf("fetch failed: %s: %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StateError wraps key-value store failures
type StateError struct {
	Op  string
	Key string
	Err error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
