package orders

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/intakebot/core/logger"
	"log/slog"
)

// PGStore persists the order log in the orders table created by migrations.
type PGStore struct {
	db *sqlx.DB
}

// NewPGStore returns a store backed by the given database handle.
func NewPGStore(db *sqlx.DB) *PGStore {
	return &PGStore{db: db}
}

// Append inserts one record.
func (s *PGStore) Append(ctx context.Context, r Record) error {
	const q = `
		INSERT INTO orders (date, user_id, username, service, message)
		VALUES (:date, :user_id, :username, :service, :message)`

	if _, err := s.db.NamedExecContext(ctx, q, r); err != nil {
		return &PersistenceError{Op: "append.insert", Err: err}
	}

	logger.SVCOrders.Info("order appended",
		slog.String("event", "order.append"),
		slog.String("backend", "postgres"),
		slog.Int64("user_id", r.UserID),
		slog.String("category", r.Service),
	)
	return nil
}

// LoadAll returns every record in insertion order.
func (s *PGStore) LoadAll(ctx context.Context) ([]Record, error) {
	const q = `
		SELECT date, user_id, username, service, message
		FROM orders
		ORDER BY id`

	var records []Record
	if err := s.db.SelectContext(ctx, &records, q); err != nil {
		return nil, &PersistenceError{Op: "load.select", Err: err}
	}
	return records, nil
}
