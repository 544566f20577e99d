package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.json")
	return NewFileStore(path), path
}

func TestAppendAndLoad(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC)
	rec := NewRecord(now, 42, "alice", "business", "нужен бот")
	require.NoError(t, store.Append(ctx, rec))

	got, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2026-08-31T12:30:00", got[0].Date)
	assert.Equal(t, int64(42), got[0].UserID)
	require.NotNil(t, got[0].Username)
	assert.Equal(t, "alice", *got[0].Username)
	assert.Equal(t, "business", got[0].Service)
	assert.Equal(t, "нужен бот", got[0].Message)
}

func TestRecordDateIsISO8601(t *testing.T) {
	rec := NewRecord(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC), 7, "", "ai", "msg")

	parsed, err := time.Parse("2006-01-02T15:04:05", rec.Date)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-31T10:00:00", rec.Date)
	assert.True(t, parsed.Equal(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)))
}

func TestFileShape(t *testing.T) {
	store, path := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, NewRecord(time.Now(), 1, "bob", "sales", "msg")))
	require.NoError(t, store.Append(ctx, NewRecord(time.Now(), 2, "", "ai", "msg2")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	for _, obj := range raw {
		for _, key := range []string{"date", "user_id", "username", "service", "message"} {
			assert.Contains(t, obj, key)
		}
		assert.Len(t, obj, 5)
	}
	// Absent username is an explicit null, not a missing key.
	assert.Equal(t, "null", string(raw[1]["username"]))
}

func TestLoadMissingFile(t *testing.T) {
	store, _ := testStore(t)

	got, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCorruptFile(t *testing.T) {
	store, path := testStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := store.LoadAll(context.Background())
	require.Error(t, err)

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "PERSISTENCE_FAILURE", pe.Code())

	err = store.Append(context.Background(), NewRecord(time.Now(), 1, "", "ai", "msg"))
	require.ErrorAs(t, err, &pe)
}

func TestConcurrentAppends(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			rec := NewRecord(time.Now(), int64(i+1), "", "leads", fmt.Sprintf("msg %d", i))
			assert.NoError(t, store.Append(ctx, rec))
		}(i)
	}
	wg.Wait()

	got, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, n)
}
