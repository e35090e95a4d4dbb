package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/model"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS midi_jobs (
	id         UUID PRIMARY KEY,
	tenant_id  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresJobStore keeps durable job records in the midi_jobs table
type PostgresJobStore struct {
	db *sql.DB
}

// NewPostgresJobStore connects and creates the table when missing
func NewPostgresJobStore(ctx context.Context, databaseURL string) (*PostgresJobStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createJobsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create jobs table: %w", err)
	}
	return &PostgresJobStore{db: db}, nil
}

func (s *PostgresJobStore) Save(ctx context.Context, job *model.Job) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	updated := job.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	query := `INSERT INTO midi_jobs (id, tenant_id, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = $3, data = $4, updated_at = $6`
	_, err = s.db.ExecContext(ctx, query, job.ID, job.TenantID, string(job.Status), data, job.CreatedAt, updated)
	if err != nil {
		return apperr.Storage("failed to save job", err)
	}
	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM midi_jobs WHERE id = $1`, jobID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("job %s not found", jobID)
		}
		return nil, apperr.Storage("failed to load job", err)
	}
	return decodeJob(data)
}

func (s *PostgresJobStore) Delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM midi_jobs WHERE id = $1`, jobID); err != nil {
		return apperr.Storage("failed to delete job", err)
	}
	return nil
}

func (s *PostgresJobStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresJobStore) Close() error {
	return s.db.Close()
}
