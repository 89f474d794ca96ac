package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/JonMunkholm/ndjson-import/internal/config"
	"github.com/JonMunkholm/ndjson-import/internal/core"
	"github.com/klauspost/compress/gzip"
)

const uploadPath = "/api/v1/example-import/upload"

func payload(key string, amount string) string {
	return `{"examplePayloadId":"` + key + `","examplePayload":{"betrag":` + amount +
		`,"zeitstempelWertstellung":"2024-01-01","verwendungszweck":"test"}}`
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(string) string { return "" })
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Rate.Enabled = false
	cfg.Import.MaxWaitTime = 0
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *core.Service) {
	t.Helper()
	svc := core.NewService(core.SentinelRule{Amount: cfg.Import.SentinelAmount}, core.NewMemoryHistory(10), cfg.Import)
	s := NewServer(svc, cfg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, svc
}

func upload(t *testing.T, s *Server, body io.Reader, contentType, encoding string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, uploadPath+"?source=orders.ndjson", body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeRecord(t *testing.T, rec *httptest.ResponseRecorder) core.RunRecord {
	t.Helper()
	var run core.RunRecord
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return run
}

func TestHandleUpload(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	body := strings.Join([]string{
		`{"header":{"source":"test"}}`,
		payload("A", "1"),
		`not json`,
		payload("B", "-9999"),
		payload("A", "2"),
	}, "\n")

	rec := upload(t, s, strings.NewReader(body), "application/x-ndjson", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	run := decodeRecord(t, rec)
	if run.ID == "" {
		t.Error("run id missing")
	}
	if run.Source != "orders.ndjson" {
		t.Errorf("Source = %q", run.Source)
	}

	sum := run.Summary
	if sum.State != core.StateComplete {
		t.Errorf("State = %s", sum.State)
	}
	if sum.TotalLines != 5 || sum.ValidLines != 3 || sum.HeaderLines != 1 || sum.ParseErrors != 1 {
		t.Errorf("tallies = %d/%d/%d/%d", sum.TotalLines, sum.ValidLines, sum.HeaderLines, sum.ParseErrors)
	}
	if len(sum.Groups) != 2 || sum.Groups[0].Key != "A" || sum.Groups[1].Key != "B" {
		t.Fatalf("groups = %+v", sum.Groups)
	}
	if sum.Groups[0].Status != core.OutcomeSuccess || sum.Groups[1].Status != core.OutcomeFailure {
		t.Errorf("outcomes = %s, %s", sum.Groups[0].Status, sum.Groups[1].Status)
	}
}

func TestHandleUpload_Gzip(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = io.WriteString(zw, payload("A", "1")+"\n"+payload("A", "2")+"\n")
	_ = zw.Close()

	rec := upload(t, s, &buf, "application/x-ndjson; charset=utf-8", "gzip")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if size, ok := decodeRecord(t, rec).Summary.Size("A"); !ok || size != 2 {
		t.Errorf("Size(A) = %d, %v", size, ok)
	}
}

func TestHandleUpload_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		body        io.Reader
		contentType string
		encoding    string
		maxBody     int64
		wantStatus  int
		wantCode    string
	}{
		{
			name:        "wrong content type",
			body:        strings.NewReader(payload("A", "1")),
			contentType: "text/csv",
			wantStatus:  http.StatusUnsupportedMediaType,
			wantCode:    "FILE002",
		},
		{
			name:       "missing content type",
			body:       strings.NewReader(payload("A", "1")),
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "FILE002",
		},
		{
			name:        "empty body",
			body:        strings.NewReader(""),
			contentType: "application/x-ndjson",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "FILE004",
		},
		{
			name:        "unsupported encoding",
			body:        strings.NewReader(payload("A", "1")),
			contentType: "application/x-ndjson",
			encoding:    "br",
			wantStatus:  http.StatusUnsupportedMediaType,
			wantCode:    "ENC001",
		},
		{
			name:        "corrupt gzip",
			body:        strings.NewReader("not gzip at all"),
			contentType: "application/x-ndjson",
			encoding:    "gzip",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "ENC002",
		},
		{
			name:        "body too large",
			body:        strings.NewReader(strings.Repeat(payload("A", "1")+"\n", 50)),
			contentType: "application/x-ndjson",
			maxBody:     256,
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantCode:    "FILE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.maxBody > 0 {
				cfg.Import.MaxBodySize = tt.maxBody
			}
			s, _ := newTestServer(t, cfg)

			rec := upload(t, s, tt.body, tt.contentType, tt.encoding)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleUpload_StreamFailure(t *testing.T) {
	s, svc := newTestServer(t, testConfig(t))

	body := io.MultiReader(
		strings.NewReader(payload("A", "1")+"\n"),
		iotest.ErrReader(errors.New("connection reset by peer")),
	)
	req := httptest.NewRequest(http.MethodPost, uploadPath, body)
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.RunID == "" || resp.Code == "" {
		t.Errorf("response = %+v, want run id and code", resp)
	}
	if resp.Summary == nil || resp.Summary.State != core.StateAborted {
		t.Errorf("summary = %+v, want aborted", resp.Summary)
	}

	// Aborted runs are recorded too.
	stored, err := svc.Run(context.Background(), resp.RunID)
	if err != nil {
		t.Fatalf("run not recorded: %v", err)
	}
	if stored.Error == "" {
		t.Error("stored run should carry the error")
	}
}

func TestHandleRuns(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	var ids []string
	for i := 0; i < 3; i++ {
		rec := upload(t, s, strings.NewReader(payload("A", "1")), "application/x-ndjson", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("upload %d: status %d", i, rec.Code)
		}
		ids = append(ids, decodeRecord(t, rec).ID)
	}

	t.Run("list newest first", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/example-import/runs?limit=2", nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp RunsResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Count != 2 || resp.Runs[0].ID != ids[2] || resp.Runs[1].ID != ids[1] {
			t.Errorf("runs = %+v", resp.Runs)
		}
	})

	t.Run("get one", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/example-import/runs/"+ids[0], nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := decodeRecord(t, rec); got.ID != ids[0] {
			t.Errorf("ID = %q, want %q", got.ID, ids[0])
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/example-import/runs/nope", nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestHealthAndHeaders(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	var resp struct {
		Status  string                   `json:"status"`
		Imports core.ImportLimiterStatus `json:"imports"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Imports.MaxConcurrent != 4 {
		t.Errorf("health = %+v", resp)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s, _ := newTestServer(t, cfg)

	rec := upload(t, s, strings.NewReader(payload("A", "1")), "application/x-ndjson", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	// Health stays open.
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 2
	s, _ := newTestServer(t, cfg)

	var codes []int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}
