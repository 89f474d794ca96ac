package core

// engine.go orchestrates a run in two sequential phases:
//
//  1. Streaming: lines are read and decoded one at a time; payload records
//     are folded into a GroupAccumulator. Line errors are counted and the
//     stream continues.
//  2. Processing: completed groups are handed to the GroupProcessor in
//     first-seen order. A failing group is recorded and the next group runs.
//
// Only a StreamReadError or context cancellation aborts a run.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Engine runs NDJSON imports. An Engine holds configuration only; every
// call to Run is an independent, single-use run and an Engine may serve
// concurrent runs.
type Engine struct {
	processor      GroupProcessor
	logger         *slog.Logger
	workers        int
	maxLineSize    int
	maxDiagnostics int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the diagnostics logger (default slog.Default()).
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkers sets how many groups are processed concurrently in phase 2.
// Values below 2 keep processing sequential.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMaxLineSize bounds the length of a single line.
func WithMaxLineSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxLineSize = n
		}
	}
}

// WithMaxDiagnostics bounds how many line errors a summary keeps.
func WithMaxDiagnostics(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.maxDiagnostics = n
		}
	}
}

// NewEngine creates an Engine that hands every group to processor.
func NewEngine(processor GroupProcessor, opts ...EngineOption) *Engine {
	e := &Engine{
		processor:      processor,
		logger:         slog.Default(),
		workers:        1,
		maxLineSize:    DefaultMaxLineSize,
		maxDiagnostics: DefaultMaxDiagnostics,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRunLogger returns a copy of e that logs to logger.
func (e *Engine) WithRunLogger(logger *slog.Logger) *Engine {
	c := *e
	if logger != nil {
		c.logger = logger
	}
	return &c
}

// Run imports one stream. It returns the summary and a nil error when the
// run completes, even if every line or every group failed.
//
// On a fatal error (*StreamReadError or context cancellation) it returns
// the partial summary with State == StateAborted together with the error.
// Run does not close r.
func (e *Engine) Run(ctx context.Context, r io.Reader) (*RunSummary, error) {
	summary := &RunSummary{State: StateIdle, StartedAt: time.Now()}

	counter := WrapForStreaming(r, 0)
	acc, err := e.stream(ctx, counter, summary)
	summary.BytesRead = counter.BytesRead
	summary.Checksum = counter.Checksum()
	summary.describeGroups(acc.Groups())

	if err != nil {
		return e.abort(summary, err)
	}
	summary.State = StateGrouped

	if err := e.process(ctx, acc.Groups(), summary); err != nil {
		return e.abort(summary, err)
	}

	summary.finish(StateComplete, time.Now())
	e.logger.Info("import run finished",
		"state", summary.State,
		"total_lines", summary.TotalLines,
		"valid_lines", summary.ValidLines,
		"header_lines", summary.HeaderLines,
		"parse_errors", summary.ParseErrors,
		"groups", summary.GroupCount,
		"failed_groups", len(summary.FailedGroups()),
		"duration_ms", summary.TotalDurationMs,
	)
	return summary, nil
}

// stream is phase 1. It always returns a non-nil accumulator holding what
// was grouped before any failure.
func (e *Engine) stream(ctx context.Context, r io.Reader, summary *RunSummary) (*GroupAccumulator, error) {
	summary.State = StateStreaming
	acc := NewGroupAccumulator()
	lines := NewLineReader(r, e.maxLineSize)

	for {
		if err := ctx.Err(); err != nil {
			return acc, err
		}
		if !lines.Next() {
			break
		}

		line := lines.Line()
		summary.TotalLines++

		res := DecodeLine(line)
		switch res.Kind {
		case RecordHeader:
			summary.HeaderLines++
		case RecordPayload:
			acc.Insert(res.GroupKey, res.Body)
			summary.ValidLines++
		default:
			summary.recordLineError(res.Err, e.maxDiagnostics)
			e.logger.Warn("line rejected",
				"line", res.Err.Line,
				"kind", res.Err.Kind,
				"detail", res.Err.Detail,
			)
		}
	}

	if err := lines.Err(); err != nil {
		return acc, err
	}

	e.logger.Debug("stream grouped",
		"lines", summary.TotalLines,
		"groups", acc.Len(),
		"members", acc.Members(),
	)
	return acc, nil
}

// process is phase 2. Each group writes only its own report slot, so
// concurrent workers need no further synchronisation.
func (e *Engine) process(ctx context.Context, groups []*Group, summary *RunSummary) error {
	summary.State = StateProcessing

	if e.workers <= 1 {
		for i, g := range groups {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.processGroup(ctx, g, &summary.Groups[i])
		}
		return nil
	}

	var eg errgroup.Group
	eg.SetLimit(e.workers)
	for i, g := range groups {
		i, g := i, g
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.processGroup(ctx, g, &summary.Groups[i])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (e *Engine) processGroup(ctx context.Context, g *Group, report *GroupReport) {
	start := time.Now()
	err := e.invoke(ctx, g)
	report.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		report.Status = OutcomeFailure
		report.Reason = failureReason(err)
		e.logger.Warn("group processing failed",
			"group", g.Key,
			"members", len(g.Members),
			"duration_ms", report.DurationMs,
			"error", err,
		)
		return
	}

	report.Status = OutcomeSuccess
	e.logger.Info("group processed",
		"group", g.Key,
		"members", len(g.Members),
		"duration_ms", report.DurationMs,
	)
}

// invoke calls the processor, turning a panic into a group failure.
func (e *Engine) invoke(ctx context.Context, g *Group) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProcessingError{Key: g.Key, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return e.processor.Process(ctx, g.Key, g.Members)
}

func (e *Engine) abort(summary *RunSummary, err error) (*RunSummary, error) {
	summary.finish(StateAborted, time.Now())
	e.logger.Error("import run aborted",
		"error", err,
		"total_lines", summary.TotalLines,
		"valid_lines", summary.ValidLines,
		"parse_errors", summary.ParseErrors,
		"groups", summary.GroupCount,
	)
	return summary, err
}
