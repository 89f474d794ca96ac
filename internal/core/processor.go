package core

import "context"

// DefaultSentinelAmount is the amount that makes SentinelRule fail a group.
const DefaultSentinelAmount int64 = -9999

// GroupProcessor handles one completed group. It is invoked exactly once
// per group with the members in arrival order. Members are shared with the
// engine and must be treated as read-only.
//
// A returned error (or a panic) fails only that group.
type GroupProcessor interface {
	Process(ctx context.Context, key string, members []PayloadBody) error
}

// ProcessorFunc adapts a function to GroupProcessor.
type ProcessorFunc func(ctx context.Context, key string, members []PayloadBody) error

// Process implements GroupProcessor.
func (f ProcessorFunc) Process(ctx context.Context, key string, members []PayloadBody) error {
	return f(ctx, key, members)
}

// SentinelRule fails any group containing a member whose amount equals
// Amount. Every other group succeeds.
type SentinelRule struct {
	Amount int64
}

// Process implements GroupProcessor.
func (r SentinelRule) Process(_ context.Context, key string, members []PayloadBody) error {
	for _, m := range members {
		if m.Amount == r.Amount {
			return &ProcessingError{Key: key, Reason: "sentinel amount"}
		}
	}
	return nil
}
