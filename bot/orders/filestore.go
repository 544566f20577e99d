package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/m3rciful/intakebot/core/logger"
	"log/slog"
)

// FileStore keeps the order log as a single JSON array on disk.
// Appends rewrite the whole array through a temp file and rename, so a crash
// mid-write never leaves a truncated log behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append adds one record to the log. The write is fsynced and renamed into
// place before Append returns.
func (s *FileStore) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return &PersistenceError{Op: "append.read", Err: err}
	}
	records = append(records, r)

	if err := s.writeLocked(records); err != nil {
		return &PersistenceError{Op: "append.write", Err: err}
	}

	logger.SVCOrders.Info("order appended",
		slog.String("event", "order.append"),
		slog.String("backend", "file"),
		slog.Int64("user_id", r.UserID),
		slog.String("category", r.Service),
		slog.Int("orders_total", len(records)),
	)
	return nil
}

// LoadAll returns every record in the log. A missing file is an empty log.
func (s *FileStore) LoadAll(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	return records, nil
}

func (s *FileStore) readLocked() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return records, nil
}

func (s *FileStore) writeLocked(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
