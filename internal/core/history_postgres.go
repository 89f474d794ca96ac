package core

// history_postgres.go stores run records in PostgreSQL. Counters that are
// useful for ad-hoc queries get their own columns; the full summary is kept
// as JSONB.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const createImportRunsTable = `
CREATE TABLE IF NOT EXISTS import_runs (
	id            UUID PRIMARY KEY,
	source        TEXT NOT NULL,
	client_ip     TEXT,
	user_agent    TEXT,
	state         TEXT NOT NULL,
	total_lines   INTEGER NOT NULL,
	valid_lines   INTEGER NOT NULL,
	header_lines  INTEGER NOT NULL,
	parse_errors  INTEGER NOT NULL,
	group_count   INTEGER NOT NULL,
	failed_groups INTEGER NOT NULL,
	checksum      TEXT NOT NULL,
	summary       JSONB NOT NULL,
	error         TEXT,
	created_at    TIMESTAMPTZ NOT NULL
)`

const createImportRunsIndex = `
CREATE INDEX IF NOT EXISTS import_runs_created_at_idx ON import_runs (created_at DESC)`

const insertImportRun = `
INSERT INTO import_runs (
	id, source, client_ip, user_agent, state, total_lines, valid_lines,
	header_lines, parse_errors, group_count, failed_groups, checksum,
	summary, error, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
	state = EXCLUDED.state,
	total_lines = EXCLUDED.total_lines,
	valid_lines = EXCLUDED.valid_lines,
	header_lines = EXCLUDED.header_lines,
	parse_errors = EXCLUDED.parse_errors,
	group_count = EXCLUDED.group_count,
	failed_groups = EXCLUDED.failed_groups,
	checksum = EXCLUDED.checksum,
	summary = EXCLUDED.summary,
	error = EXCLUDED.error`

const selectImportRun = `
SELECT id, source, client_ip, user_agent, summary, error, created_at
FROM import_runs`

// PostgresHistory is a HistoryStore backed by the import_runs table.
type PostgresHistory struct {
	db DBTX
}

// NewPostgresHistory creates a PostgresHistory on db (usually a pgxpool.Pool).
func NewPostgresHistory(db DBTX) *PostgresHistory {
	return &PostgresHistory{db: db}
}

// EnsureSchema creates the import_runs table if it does not exist.
func (p *PostgresHistory) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createImportRunsTable, createImportRunsIndex} {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create import_runs: %w", err)
		}
	}
	return nil
}

// Save implements HistoryStore.
func (p *PostgresHistory) Save(ctx context.Context, rec *RunRecord) error {
	id, err := toPgUUID(rec.ID)
	if err != nil {
		return err
	}

	summary := rec.Summary
	if summary == nil {
		summary = &RunSummary{}
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	_, err = p.db.Exec(ctx, insertImportRun,
		id,
		rec.Source,
		toPgText(rec.ClientIP),
		toPgText(rec.UserAgent),
		string(summary.State),
		summary.TotalLines,
		summary.ValidLines,
		summary.HeaderLines,
		summary.ParseErrors,
		summary.GroupCount,
		len(summary.FailedGroups()),
		summary.Checksum,
		payload,
		toPgText(rec.Error),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import run %s: %w", rec.ID, err)
	}
	return nil
}

// Get implements HistoryStore.
func (p *PostgresHistory) Get(ctx context.Context, id string) (*RunRecord, error) {
	pgID, err := toPgUUID(id)
	if err != nil {
		return nil, ErrRunNotFound
	}

	rec, err := scanRunRecord(p.db.QueryRow(ctx, selectImportRun+" WHERE id = $1", pgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import run %s: %w", id, err)
	}
	return rec, nil
}

// List implements HistoryStore.
func (p *PostgresHistory) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := p.db.Query(ctx, selectImportRun+" ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	defer rows.Close()

	records := make([]*RunRecord, 0)
	for rows.Next() {
		rec, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanRunRecord(row pgx.Row) (*RunRecord, error) {
	var (
		id        pgtype.UUID
		rec       RunRecord
		clientIP  pgtype.Text
		userAgent pgtype.Text
		runErr    pgtype.Text
		summary   []byte
	)
	if err := row.Scan(&id, &rec.Source, &clientIP, &userAgent, &summary, &runErr, &rec.CreatedAt); err != nil {
		return nil, err
	}

	rec.ID = uuid.UUID(id.Bytes).String()
	rec.ClientIP = clientIP.String
	rec.UserAgent = userAgent.String
	rec.Error = runErr.String

	rec.Summary = &RunSummary{}
	if err := json.Unmarshal(summary, rec.Summary); err != nil {
		return nil, fmt.Errorf("decode summary of run %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func toPgUUID(id string) (pgtype.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
