package playerdb

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a SQLite OfflineStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// init creates the necessary tables.
func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS offline_players (
			xuid INTEGER PRIMARY KEY,
			uuid TEXT NOT NULL,
			name TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_offline_players_uuid ON offline_players(uuid);
		CREATE INDEX IF NOT EXISTS idx_offline_players_name ON offline_players(name COLLATE NOCASE);
	`)
	return err
}

// Upsert records a player.
func (s *SQLiteStore) Upsert(ctx context.Context, e OfflinePlayerEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO offline_players (xuid, uuid, name)
		VALUES (?, ?, ?)
	`, int64(e.XUID), e.UUID.String(), e.Name)
	return err
}

// ByXUID looks a player up by XUID.
func (s *SQLiteStore) ByXUID(ctx context.Context, xuid uint64) (OfflinePlayerEntry, bool, error) {
	return scanOffline(s.db.QueryRowContext(ctx,
		`SELECT xuid, uuid, name FROM offline_players WHERE xuid = ?`, int64(xuid)))
}

// ByUUID looks a player up by UUID.
func (s *SQLiteStore) ByUUID(ctx context.Context, id uuid.UUID) (OfflinePlayerEntry, bool, error) {
	return scanOffline(s.db.QueryRowContext(ctx,
		`SELECT xuid, uuid, name FROM offline_players WHERE uuid = ?`, id.String()))
}

// ByName looks a player up by name, ignoring case.
func (s *SQLiteStore) ByName(ctx context.Context, name string) (OfflinePlayerEntry, bool, error) {
	return scanOffline(s.db.QueryRowContext(ctx,
		`SELECT xuid, uuid, name FROM offline_players WHERE name = ? COLLATE NOCASE LIMIT 1`, name))
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
