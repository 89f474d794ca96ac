package core

import (
	"errors"
	"fmt"
)

// LineErrorKind classifies why a line was rejected.
type LineErrorKind string

const (
	// LineMalformed means the line is not a structurally valid JSON document.
	LineMalformed LineErrorKind = "malformed"

	// LineSchemaMismatch means the line is valid JSON but lacks the fields
	// (or field types) a payload record needs.
	LineSchemaMismatch LineErrorKind = "schema_mismatch"

	// LineTooLong means the line exceeded the maximum line size and was
	// skipped without being parsed.
	LineTooLong LineErrorKind = "too_long"
)

// LineError is a recoverable, per-line decoding failure. It is counted and
// reported; the stream continues with the next line.
type LineError struct {
	Kind   LineErrorKind `json:"kind" yaml:"kind"`
	Line   int           `json:"line" yaml:"line"`
	Detail string        `json:"detail" yaml:"detail"`
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Kind, e.Detail)
}

// StreamReadError is the only fatal error of a run: the underlying stream
// failed mid-read. Line is the number of the last line read successfully.
type StreamReadError struct {
	Line int
	Err  error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("stream read failed after line %d: %v", e.Line, e.Err)
}

func (e *StreamReadError) Unwrap() error {
	return e.Err
}

// ProcessingError is a recoverable, per-group failure raised by a
// GroupProcessor. Other groups are unaffected.
type ProcessingError struct {
	Key    string
	Reason string
	Err    error // optional cause
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("group %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("group %s: %s", e.Key, e.Reason)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// failureReason extracts the reason recorded in a group report.
func failureReason(err error) string {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return err.Error()
}
