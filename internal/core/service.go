package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/ndjson-import/internal/config"
	"github.com/JonMunkholm/ndjson-import/internal/logging"
	"github.com/google/uuid"
)

// Service runs imports on behalf of a transport. It adds what a single
// engine run does not know about: admission control, run ids, timeouts,
// content decoding and run history.
type Service struct {
	engine  *Engine
	history HistoryStore
	limiter *ImportLimiter
	timeout time.Duration
}

// ImportRequest describes one stream to import.
type ImportRequest struct {
	Source          string    // free-form origin, e.g. a file name
	ContentEncoding string    // see DecodeContent
	Body            io.Reader // not closed by the service
}

// NewService creates a Service that processes groups with processor and
// records runs in history.
func NewService(processor GroupProcessor, history HistoryStore, cfg config.ImportConfig) *Service {
	if history == nil {
		history = NewMemoryHistory(cfg.HistoryLimit)
	}
	return &Service{
		engine: NewEngine(processor,
			WithWorkers(cfg.GroupWorkers),
			WithMaxLineSize(cfg.MaxLineSize),
			WithMaxDiagnostics(cfg.MaxDiagnostics),
		),
		history: history,
		limiter: NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		timeout: cfg.Timeout,
	}
}

// Import runs one stream to completion.
//
// On success the record holds the complete summary, including any line or
// group failures. On a fatal failure the record (with the partial summary)
// is still stored and returned, together with the error. Admission and
// content-encoding failures happen before a run exists and return a nil
// record.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*RunRecord, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	body, err := DecodeContent(req.ContentEncoding, req.Body)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	runID := uuid.New().String()
	source := req.Source
	if source == "" {
		source = "stream"
	}
	logger := logging.WithFields(ctx, "run_id", runID, "source", source)
	logger.Info("import started", "encoding", req.ContentEncoding)

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	summary, runErr := s.engine.WithRunLogger(logger).Run(runCtx, body)

	rec := &RunRecord{
		ID:        runID,
		Source:    source,
		ClientIP:  ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Summary:   summary,
		CreatedAt: summary.StartedAt,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	// The run is over; record it even if the caller has gone away.
	if err := s.history.Save(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("failed to record import run", "error", err)
	}

	if runErr != nil {
		return rec, fmt.Errorf("import run %s: %w", runID, runErr)
	}
	return rec, nil
}

// Run returns a recorded run.
func (s *Service) Run(ctx context.Context, id string) (*RunRecord, error) {
	return s.history.Get(ctx, id)
}

// Runs returns up to limit recorded runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]*RunRecord, error) {
	return s.history.List(ctx, limit)
}

// LimiterStatus returns the current import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	if n := s.limiter.ActiveCount(); n > 0 {
		slog.Info("waiting for imports to complete", "active", n)
	}
	return s.limiter.WaitForDrain(ctx)
}
