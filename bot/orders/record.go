// Package orders persists incoming task orders.
package orders

import (
	"context"
	"fmt"
	"time"
)

// DateLayout is the timestamp format written to the order log. The log is
// read by external tooling that expects ISO8601 dates.
const DateLayout = "2006-01-02T15:04:05"

// Record is one accepted order. Field names are fixed: the JSON file backend
// is read by external tooling that expects exactly this shape.
type Record struct {
	Date     string  `json:"date" db:"date"`
	UserID   int64   `json:"user_id" db:"user_id"`
	Username *string `json:"username" db:"username"`
	Service  string  `json:"service" db:"service"`
	Message  string  `json:"message" db:"message"`
}

// NewRecord builds a Record stamped with the given time.
func NewRecord(now time.Time, userID int64, username, service, message string) Record {
	r := Record{
		Date:    now.Format(DateLayout),
		UserID:  userID,
		Service: service,
		Message: message,
	}
	if username != "" {
		r.Username = &username
	}
	return r
}

// Store appends and reads order records. Append is durable before it returns
// and safe under concurrent callers.
type Store interface {
	Append(ctx context.Context, r Record) error
	LoadAll(ctx context.Context) ([]Record, error)
}

// PersistenceError wraps a storage failure so handler logs carry a stable code.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("orders: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Code identifies the error class for structured handler logs.
func (e *PersistenceError) Code() string { return "PERSISTENCE_FAILURE" }
