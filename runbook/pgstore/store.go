package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	"github.com/jitsucom/backfill-runbooks/jitsubase/pg"
	"github.com/jitsucom/backfill-runbooks/runbook"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var trackingDDLs = []string{
	`CREATE TABLE IF NOT EXISTS runbook_tracking (
		name TEXT PRIMARY KEY,
		document JSONB NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
}

const upsertTracking = `INSERT INTO runbook_tracking (name, document, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (name) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`

// Store keeps each progress document as a single jsonb row keyed by name.
// Upsert of the whole document makes Save atomic.
type Store struct {
	pool *pgxpool.Pool
	name string
	own  bool
}

// New connects to databaseURL and creates tracking table if needed
func New(ctx context.Context, databaseURL, name string) (*Store, error) {
	pool, err := pg.NewPGPool(ctx, databaseURL)
	if err != nil {
		return nil, errorj.StoreError.Wrap(err, "failed to connect to tracking database")
	}
	s, err := NewWithPool(ctx, pool, name)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.own = true
	return s, nil
}

func NewWithPool(ctx context.Context, pool *pgxpool.Pool, name string) (*Store, error) {
	for _, ddl := range trackingDDLs {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return nil, errorj.StoreError.Wrap(err, "error running DDL query")
		}
	}
	return &Store{pool: pool, name: name}, nil
}

func (s *Store) Location() string {
	return fmt.Sprintf("postgres:runbook_tracking/%s", s.name)
}

func (s *Store) Load(ctx context.Context) (*runbook.Tracking, error) {
	var document []byte
	err := s.pool.QueryRow(ctx, `SELECT document FROM runbook_tracking WHERE name = $1`, s.name).Scan(&document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, runbook.ErrNotFound
		}
		return nil, errorj.StoreError.Wrap(err, "failed to load tracking %s", s.name)
	}
	t := &runbook.Tracking{}
	if err = json.Unmarshal(document, t); err != nil {
		return nil, errorj.StoreError.Wrap(err, "failed to parse tracking %s", s.name)
	}
	if t.Units == nil {
		t.Units = map[string]*runbook.UnitState{}
	}
	return t, nil
}

func (s *Store) Save(ctx context.Context, t *runbook.Tracking) error {
	document, err := json.Marshal(t)
	if err != nil {
		return errorj.StoreError.Wrap(err, "failed to serialize tracking")
	}
	if _, err = s.pool.Exec(ctx, upsertTracking, s.name, document); err != nil {
		return errorj.StoreError.Wrap(err, "failed to save tracking %s", s.name)
	}
	return nil
}

// Close closes connection pool if it was created by New
func (s *Store) Close() error {
	if s.own {
		s.pool.Close()
	}
	return nil
}
