package lutstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// Registers the "sqlite3" database/sql driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/Abdullah1738/juno-luts/lut"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

const schema = `
CREATE TABLE IF NOT EXISTS lookup_tables (
	address      TEXT PRIMARY KEY,
	authority    TEXT NOT NULL,
	state        TEXT NOT NULL,
	len          INTEGER NOT NULL,
	updated_slot INTEGER NOT NULL,
	record       BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS lookup_tables_authority ON lookup_tables (authority);
CREATE TABLE IF NOT EXISTS registry_meta (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

// SQLiteStore keeps one row per table. The CBOR record is authoritative;
// the other columns exist for filtering and ad-hoc inspection.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// gives a private in-process database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers the way the service expects.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key solana.Pubkey) (*lut.Table, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM lookup_tables WHERE address = ?`,
		key.Base58(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", key, err)
	}
	return decodeTable(raw)
}

func (s *SQLiteStore) Put(ctx context.Context, t *lut.Table) error {
	if t == nil {
		return errors.New("nil table")
	}
	raw, err := encodeTable(t)
	if err != nil {
		return fmt.Errorf("encode table %s: %w", t.Address, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO lookup_tables (address, authority, state, len, updated_slot, record)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (address) DO UPDATE SET
	authority    = excluded.authority,
	state        = excluded.state,
	len          = excluded.len,
	updated_slot = excluded.updated_slot,
	record       = excluded.record`,
		t.Address.Base58(),
		t.Authority.Base58(),
		t.State.String(),
		t.Len(),
		int64(t.ActivationSlot()),
		raw,
	)
	if err != nil {
		return fmt.Errorf("store table %s: %w", t.Address, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key solana.Pubkey) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lookup_tables WHERE address = ?`, key.Base58())
	if err != nil {
		return fmt.Errorf("delete table %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, authority solana.Pubkey) ([]solana.Pubkey, error) {
	query := `SELECT address FROM lookup_tables`
	var args []any
	if !authority.IsZero() {
		query += ` WHERE authority = ?`
		args = append(args, authority.Base58())
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []solana.Pubkey
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		pk, err := solana.ParsePubkey(addr)
		if err != nil {
			return nil, fmt.Errorf("stored address %q: %w", addr, err)
		}
		out = append(out, pk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortPubkeys(out)
	return out, nil
}

func (s *SQLiteStore) Anchor(ctx context.Context, name string, value int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO registry_meta (name, value) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		name, value,
	); err != nil {
		return 0, fmt.Errorf("store anchor %q: %w", name, err)
	}
	var stored int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM registry_meta WHERE name = ?`, name).Scan(&stored); err != nil {
		return 0, fmt.Errorf("load anchor %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return stored, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
