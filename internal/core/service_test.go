package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/JonMunkholm/ndjson-import/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) Save(ctx context.Context, rec *RunRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockHistory) Get(ctx context.Context, id string) (*RunRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RunRecord), args.Error(1)
}

func (m *MockHistory) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*RunRecord), args.Error(1)
}

func testImportConfig() config.ImportConfig {
	return config.ImportConfig{
		MaxLineSize:    DefaultMaxLineSize,
		MaxConcurrent:  2,
		MaxWaitTime:    100 * time.Millisecond,
		Timeout:        time.Minute,
		GroupWorkers:   1,
		SentinelAmount: DefaultSentinelAmount,
		MaxDiagnostics: DefaultMaxDiagnostics,
		HistoryLimit:   10,
	}
}

func TestService_Import(t *testing.T) {
	t.Run("should record a completed run", func(t *testing.T) {
		history := new(MockHistory)
		service := NewService(SentinelRule{Amount: DefaultSentinelAmount}, history, testImportConfig())

		history.On("Save", mock.Anything, mock.MatchedBy(func(rec *RunRecord) bool {
			return rec.Source == "orders.ndjson" && rec.Error == "" && rec.Summary.State == StateComplete
		})).Return(nil).Once()

		ctx := ContextWithClientIP(context.Background(), "10.0.0.1")
		input := ndjson(payloadLine("A", 1), payloadLine("B", -9999))

		rec, err := service.Import(ctx, ImportRequest{Source: "orders.ndjson", Body: strings.NewReader(input)})

		assert.NoError(t, err)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "10.0.0.1", rec.ClientIP)
		assert.Equal(t, 2, rec.Summary.GroupCount)
		assert.Len(t, rec.Summary.FailedGroups(), 1)
		history.AssertExpectations(t)
	})

	t.Run("should record an aborted run and return the error", func(t *testing.T) {
		history := new(MockHistory)
		service := NewService(SentinelRule{Amount: DefaultSentinelAmount}, history, testImportConfig())

		history.On("Save", mock.Anything, mock.MatchedBy(func(rec *RunRecord) bool {
			return rec.Error != "" && rec.Summary.State == StateAborted
		})).Return(nil).Once()

		body := io.MultiReader(strings.NewReader(ndjson(payloadLine("A", 1))), iotest.ErrReader(errors.New("reset")))
		rec, err := service.Import(context.Background(), ImportRequest{Body: body})

		var sre *StreamReadError
		assert.ErrorAs(t, err, &sre)
		assert.NotNil(t, rec)
		assert.Equal(t, "stream", rec.Source)
		assert.Contains(t, err.Error(), rec.ID)
		history.AssertExpectations(t)
	})

	t.Run("should return the record even if history fails", func(t *testing.T) {
		history := new(MockHistory)
		service := NewService(SentinelRule{Amount: DefaultSentinelAmount}, history, testImportConfig())

		history.On("Save", mock.Anything, mock.Anything).Return(errors.New("connection refused")).Once()

		rec, err := service.Import(context.Background(), ImportRequest{Body: strings.NewReader(ndjson(payloadLine("A", 1)))})

		assert.NoError(t, err)
		assert.NotNil(t, rec)
		history.AssertExpectations(t)
	})

	t.Run("should reject an unsupported encoding before running", func(t *testing.T) {
		history := new(MockHistory)
		service := NewService(SentinelRule{Amount: DefaultSentinelAmount}, history, testImportConfig())

		rec, err := service.Import(context.Background(), ImportRequest{ContentEncoding: "br", Body: strings.NewReader("")})

		assert.ErrorIs(t, err, ErrUnsupportedEncoding)
		assert.Nil(t, rec)
		history.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("should reject when all slots are busy", func(t *testing.T) {
		cfg := testImportConfig()
		cfg.MaxConcurrent = 1
		service := NewService(SentinelRule{Amount: DefaultSentinelAmount}, nil, cfg)

		if !service.limiter.TryAcquire() {
			t.Fatal("could not take the only slot")
		}
		defer service.limiter.Release()

		_, err := service.Import(context.Background(), ImportRequest{Body: strings.NewReader("")})
		assert.ErrorIs(t, err, ErrTooManyImports)
		assert.Equal(t, 1, service.LimiterStatus().Active)
	})
}

func TestService_Runs(t *testing.T) {
	t.Run("should delegate lookups to history", func(t *testing.T) {
		history := new(MockHistory)
		service := NewService(SentinelRule{}, history, testImportConfig())

		want := &RunRecord{ID: "run-1"}
		history.On("Get", mock.Anything, "run-1").Return(want, nil).Once()
		history.On("Get", mock.Anything, "missing").Return(nil, ErrRunNotFound).Once()
		history.On("List", mock.Anything, 5).Return([]*RunRecord{want}, nil).Once()

		got, err := service.Run(context.Background(), "run-1")
		assert.NoError(t, err)
		assert.Equal(t, want, got)

		_, err = service.Run(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrRunNotFound)

		runs, err := service.Runs(context.Background(), 5)
		assert.NoError(t, err)
		assert.Len(t, runs, 1)

		history.AssertExpectations(t)
	})

	t.Run("should fall back to memory history", func(t *testing.T) {
		service := NewService(SentinelRule{}, nil, testImportConfig())

		rec, err := service.Import(context.Background(), ImportRequest{Body: strings.NewReader(ndjson(payloadLine("A", 1)))})
		assert.NoError(t, err)

		got, err := service.Run(context.Background(), rec.ID)
		assert.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
	})
}

func TestService_WaitForImports(t *testing.T) {
	service := NewService(SentinelRule{}, nil, testImportConfig())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, service.WaitForImports(ctx))
}
