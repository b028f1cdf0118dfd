package playerdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// OfflineStore remembers every player that has joined.
type OfflineStore interface {
	// Upsert records or refreshes a player.
	Upsert(ctx context.Context, e OfflinePlayerEntry) error

	// ByXUID, ByUUID and ByName report ok=false when nothing matches.
	ByXUID(ctx context.Context, xuid uint64) (OfflinePlayerEntry, bool, error)
	ByUUID(ctx context.Context, id uuid.UUID) (OfflinePlayerEntry, bool, error)
	ByName(ctx context.Context, name string) (OfflinePlayerEntry, bool, error)

	// Close releases the backend.
	Close() error
}

// OpenStore creates the backend named by kind: "memory", "sqlite" or "postgresql".
func OpenStore(kind, path, url string) (OfflineStore, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(path)
	case "postgres", "postgresql":
		return NewPostgresStore(url)
	default:
		return nil, fmt.Errorf("unknown storage type %q", kind)
	}
}

// scanOffline reads one offline_players row.
func scanOffline(row *sql.Row) (OfflinePlayerEntry, bool, error) {
	var xuid int64
	var id, name string
	if err := row.Scan(&xuid, &id, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OfflinePlayerEntry{}, false, nil
		}
		return OfflinePlayerEntry{}, false, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return OfflinePlayerEntry{}, false, fmt.Errorf("stored uuid for %d: %w", xuid, err)
	}
	return OfflinePlayerEntry{XUID: uint64(xuid), UUID: parsed, Name: name}, true, nil
}
