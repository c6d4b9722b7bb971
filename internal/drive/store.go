package drive

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/wisnuc/appifi/internal/db"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS drives (
	id TEXT PRIMARY KEY,
	uuid TEXT NOT NULL DEFAULT '',
	mountpoint TEXT NOT NULL,
	fs_type TEXT NOT NULL DEFAULT ''
);
`

// Store persists the last known snapshot so the gateway can serve drives
// before the first probe completes.
type Store struct {
	db *sqlx.DB
}

func NewStore(conn *sqlx.DB) (*Store, error) {
	if err := db.Migrate(conn, schemaSQL); err != nil {
		return nil, fmt.Errorf("drive store: %w", err)
	}
	return &Store{db: conn}, nil
}

func (s *Store) Load(ctx context.Context) ([]Drive, error) {
	drives := []Drive{}
	err := s.db.SelectContext(ctx, &drives, "SELECT id, uuid, mountpoint, fs_type FROM drives ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load drives: %w", err)
	}
	return drives, nil
}

// Save replaces the stored snapshot.
func (s *Store) Save(ctx context.Context, drives []Drive) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM drives"); err != nil {
		return fmt.Errorf("clear drives: %w", err)
	}
	for _, d := range drives {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO drives (id, uuid, mountpoint, fs_type) VALUES (:id, :uuid, :mountpoint, :fs_type)`, d)
		if err != nil {
			return fmt.Errorf("insert drive %s: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
