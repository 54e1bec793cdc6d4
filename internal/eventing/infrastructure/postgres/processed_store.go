package postgres

import (
	"context"
	"database/sql"
	"errors"
)

// ProcessedStore is a Postgres eventing.ProcessedStore.
type ProcessedStore struct {
	db *sql.DB
}

// NewProcessedStore constructs a processed store.
func NewProcessedStore(db *sql.DB) *ProcessedStore {
	return &ProcessedStore{db: db}
}

// HasProcessed reports whether consumerName handled eventID.
func (s *ProcessedStore) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("processed store: nil db")
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM event_processed WHERE event_id = $1 AND consumer = $2
)`, eventID, consumerName).Scan(&exists)
	return exists, err
}

// MarkProcessed records that consumerName handled eventID.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	if s == nil || s.db == nil {
		return errors.New("processed store: nil db")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO event_processed (event_id, consumer)
VALUES ($1, $2)
ON CONFLICT (event_id, consumer) DO NOTHING`, eventID, consumerName)
	return err
}
