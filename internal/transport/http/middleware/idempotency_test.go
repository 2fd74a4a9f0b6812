package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"leavehub/internal/platform/querier"
)

type storedKey struct {
	userID   string
	key      string
	endpoint string
}

type storedEntry struct {
	hash     string
	response json.RawMessage
}

// fakeKeyDB backs IdempotencyStore with a map, honouring the insert-or-
// guarded-update contract of the idempotency_keys table.
type fakeKeyDB struct {
	querier.Querier
	entries map[storedKey]storedEntry
}

func newFakeKeyDB() *fakeKeyDB {
	return &fakeKeyDB{entries: make(map[storedKey]storedEntry)}
}

func (f *fakeKeyDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	id := storedKey{userID: args[0].(string), key: args[1].(string), endpoint: args[2].(string)}
	entry, ok := f.entries[id]
	if !ok {
		return fakeKeyRow{err: pgx.ErrNoRows}
	}
	return fakeKeyRow{hash: entry.hash, response: entry.response}
}

func (f *fakeKeyDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	id := storedKey{userID: args[0].(string), key: args[1].(string), endpoint: args[2].(string)}
	hash := args[3].(string)
	response := args[4].(json.RawMessage)
	if existing, ok := f.entries[id]; ok {
		if existing.hash != hash {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		f.entries[id] = storedEntry{hash: hash, response: response}
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	f.entries[id] = storedEntry{hash: hash, response: response}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

type fakeKeyRow struct {
	err      error
	hash     string
	response json.RawMessage
}

func (r fakeKeyRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.hash
	*dest[1].(*json.RawMessage) = r.response
	return nil
}

func TestIdempotencyStoreReplaysStoredResponse(t *testing.T) {
	store := NewIdempotencyStore(newFakeKeyDB())
	ctx := context.Background()

	body := []byte(`{"targetYear":2026,"notify":false}`)
	hash := RequestHash(append([]byte("emp-1\n"), body...))

	if _, found, err := store.Check(ctx, "admin-1", "leave.rollover.employee_reset", "retry-1", hash); err != nil || found {
		t.Fatalf("expected a miss before the first save, found=%v err=%v", found, err)
	}

	summary := json.RawMessage(`{"archivedCount":4,"resetCount":4}`)
	if err := store.Save(ctx, "admin-1", "leave.rollover.employee_reset", "retry-1", hash, summary); err != nil {
		t.Fatalf("save error: %v", err)
	}

	stored, found, err := store.Check(ctx, "admin-1", "leave.rollover.employee_reset", "retry-1", hash)
	if err != nil || !found {
		t.Fatalf("expected replay after save, found=%v err=%v", found, err)
	}
	if string(stored) != string(summary) {
		t.Fatalf("expected the stored summary back, got %s", stored)
	}
}

func TestIdempotencyStoreRejectsReusedKeyWithNewPayload(t *testing.T) {
	store := NewIdempotencyStore(newFakeKeyDB())
	ctx := context.Background()

	first := RequestHash([]byte(`{"notify":false}`))
	changed := RequestHash([]byte(`{"notify":true}`))
	if err := store.Save(ctx, "admin-1", "leave.rollover.run", "run-1", first, json.RawMessage(`{"archivedCount":6}`)); err != nil {
		t.Fatalf("save error: %v", err)
	}

	if _, _, err := store.Check(ctx, "admin-1", "leave.rollover.run", "run-1", changed); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected conflict when the payload changes under a reused key, got %v", err)
	}
	if err := store.Save(ctx, "admin-1", "leave.rollover.run", "run-1", changed, json.RawMessage(`{"archivedCount":0}`)); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected conflicting save to be rejected, got %v", err)
	}

	stored, found, err := store.Check(ctx, "admin-1", "leave.rollover.run", "run-1", first)
	if err != nil || !found || string(stored) != `{"archivedCount":6}` {
		t.Fatalf("conflicting save must not clobber the original response, got %s (found=%v err=%v)", stored, found, err)
	}
}

func TestIdempotencyStoreScopesKeysByUserAndEndpoint(t *testing.T) {
	store := NewIdempotencyStore(newFakeKeyDB())
	ctx := context.Background()

	hash := RequestHash([]byte(`{}`))
	if err := store.Save(ctx, "admin-1", "leave.rollover.run", "jan-retry", hash, json.RawMessage(`{"resetCount":8}`)); err != nil {
		t.Fatalf("save error: %v", err)
	}

	if _, found, err := store.Check(ctx, "admin-1", "leave.rollover.employee_reset", "jan-retry", hash); err != nil || found {
		t.Fatalf("key reuse on another endpoint must start fresh, found=%v err=%v", found, err)
	}
	if _, found, err := store.Check(ctx, "admin-2", "leave.rollover.run", "jan-retry", hash); err != nil || found {
		t.Fatalf("key reuse by another user must start fresh, found=%v err=%v", found, err)
	}
}

func TestIdempotencyStoreNilReceiverPassesThrough(t *testing.T) {
	var store *IdempotencyStore
	if _, found, err := store.Check(context.Background(), "admin-1", "leave.rollover.run", "k", "h"); err != nil || found {
		t.Fatalf("nil store must behave as a miss, found=%v err=%v", found, err)
	}
	if err := store.Save(context.Background(), "admin-1", "leave.rollover.run", "k", "h", nil); err != nil {
		t.Fatalf("nil store must ignore saves: %v", err)
	}
}

func TestRequestHashPinsEmployeeAndPayload(t *testing.T) {
	body := []byte(`{"targetYear":2026,"notify":false}`)
	first := RequestHash(append([]byte("emp-1\n"), body...))
	repeat := RequestHash(append([]byte("emp-1\n"), body...))
	otherEmployee := RequestHash(append([]byte("emp-2\n"), body...))
	otherPayload := RequestHash(append([]byte("emp-1\n"), []byte(`{"targetYear":2027,"notify":false}`)...))

	if first != repeat {
		t.Fatal("expected a stable hash for the same employee and payload")
	}
	if first == otherEmployee {
		t.Fatal("expected the employee id to change the hash")
	}
	if first == otherPayload {
		t.Fatal("expected the payload to change the hash")
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(first))
	}
}
