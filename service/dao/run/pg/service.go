// Package pg stores runs in PostgreSQL as JSONB documents.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/service/dao"
	"github.com/viant/chemflow/service/dao/run"
)

const schema = `
CREATE TABLE IF NOT EXISTS chemflow_runs (
	id         TEXT PRIMARY KEY,
	workflow   TEXT NOT NULL,
	state      TEXT NOT NULL,
	version    INTEGER NOT NULL,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// Service implements a PostgreSQL run store
type Service struct {
	pool *pgxpool.Pool
}

var _ dao.Service[string, execution.Run] = (*Service)(nil)

// Save inserts a new run or updates the stored one when its version still matches r.Version
func (s *Service) Save(ctx context.Context, r *execution.Run) (err error) {
	if r == nil {
		return dao.ErrNilEntity
	}
	expected := r.Version
	r.Version++
	defer func() {
		if err != nil {
			r.Version = expected
		}
	}()
	body, err := run.Encode(r)
	if err != nil {
		return err
	}
	workflow := ""
	if r.Workflow != nil {
		workflow = r.Workflow.Name
	}
	var tag pgconn.CommandTag
	if expected == 0 {
		tag, err = s.pool.Exec(ctx, `
			INSERT INTO chemflow_runs (id, workflow, state, version, body, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, workflow, string(r.State), r.Version, body, r.CreatedAt, r.UpdatedAt)
	} else {
		tag, err = s.pool.Exec(ctx, `
			UPDATE chemflow_runs
			SET state = $2, version = $3, body = $4, updated_at = $5
			WHERE id = $1 AND version = $6
		`, r.ID, string(r.State), r.Version, body, r.UpdatedAt, expected)
	}
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var stored int
		if qErr := s.pool.QueryRow(ctx, `SELECT version FROM chemflow_runs WHERE id = $1`, r.ID).Scan(&stored); qErr != nil && !errors.Is(qErr, pgx.ErrNoRows) {
			return fmt.Errorf("select run %s version: %w", r.ID, qErr)
		}
		return run.Conflict(r.ID, stored, expected)
	}
	return nil
}

// Load reads a run or returns dao.ErrNotFound
func (s *Service) Load(ctx context.Context, id string) (*execution.Run, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM chemflow_runs WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, dao.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select run %s: %w", id, err)
	}
	return run.Decode(body)
}

// Delete removes a run record
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM chemflow_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return dao.ErrNotFound
	}
	return nil
}

// List returns runs matching parameters, oldest first
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Run, error) {
	rows, err := s.pool.Query(ctx, `SELECT body FROM chemflow_runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []*execution.Run
	for rows.Next() {
		var body []byte
		if err = rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r, err := run.Decode(body)
		if err != nil {
			return nil, err
		}
		if run.Matches(r, parameters) {
			runs = append(runs, r)
		}
	}
	return runs, rows.Err()
}

// Close closes the connection pool
func (s *Service) Close() {
	s.pool.Close()
}

// New connects to dsn and ensures the runs table exists
func New(ctx context.Context, dsn string) (*Service, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err = pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Service{pool: pool}, nil
}
