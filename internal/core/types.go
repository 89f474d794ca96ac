package core

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Line is one line of the input stream. Number is 1-based. TooLong marks
// a line that exceeded the maximum line size; its Text is empty.
type Line struct {
	Number  int
	Text    string
	TooLong bool
}

// PayloadBody is the domain record carried by a payload line. The engine
// passes it through opaquely; only a GroupProcessor interprets Amount.
type PayloadBody struct {
	Amount    int64  `json:"betrag" yaml:"betrag"`
	ValueDate string `json:"zeitstempelWertstellung" yaml:"zeitstempelWertstellung"`
	Purpose   string `json:"verwendungszweck" yaml:"verwendungszweck"`
}

// RecordKind tags the outcome of decoding one line.
type RecordKind int

const (
	// RecordInvalid lines carry a *LineError.
	RecordInvalid RecordKind = iota
	// RecordHeader lines are skipped.
	RecordHeader
	// RecordPayload lines carry a group key and a body.
	RecordPayload
)

func (k RecordKind) String() string {
	switch k {
	case RecordHeader:
		return "header"
	case RecordPayload:
		return "payload"
	default:
		return "invalid"
	}
}

// DecodeResult is the typed outcome of decoding a single line. Exactly one
// of the following holds:
//   - Kind == RecordHeader
//   - Kind == RecordPayload, with GroupKey and Body set
//   - Kind == RecordInvalid, with Err set
type DecodeResult struct {
	Kind     RecordKind
	GroupKey string
	Body     PayloadBody
	Err      *LineError
}

// Group is all payload bodies sharing a group key, in arrival order.
type Group struct {
	Key     string
	Members []PayloadBody
}

// RunState is the lifecycle of a single engine run:
//
//	idle -> streaming -> grouped -> processing -> complete
//
// Any state before complete can move to aborted on a fatal error.
type RunState string

const (
	StateIdle       RunState = "idle"
	StateStreaming  RunState = "streaming"
	StateGrouped    RunState = "grouped"
	StateProcessing RunState = "processing"
	StateComplete   RunState = "complete"
	StateAborted    RunState = "aborted"
)

// OutcomeStatus is the processing result of one group.
type OutcomeStatus string

const (
	OutcomePending OutcomeStatus = "pending"
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)
