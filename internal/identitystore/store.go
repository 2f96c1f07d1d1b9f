// Package identitystore persists a Persistent-mode node's identifier and
// its observed-peer connection history across restarts, adapted from the
// teacher's internal/storage/sqlite and internal/version packages.
package identitystore

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/brypt-io/brypt-core/internal/peer"
)

// Store is a SQLite-backed identity and connection-history sink.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path. path may be
// ":memory:" for a throwaway, process-local store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, errs.Newf(errs.Unspecified, "open identity store %s: %v", path, err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS identity (
			singleton INTEGER PRIMARY KEY CHECK (singleton = 0),
			identifier BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS peer_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			peer_identifier TEXT NOT NULL,
			remote_address TEXT NOT NULL,
			connected_at INTEGER NOT NULL,
			disconnected_at INTEGER,
			disconnect_cause TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_peer_history_identifier ON peer_history(peer_identifier);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errs.Newf(errs.Unspecified, "init identity store schema: %v", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadIdentifier returns the persisted node identifier, if one has ever
// been saved.
func (s *Store) LoadIdentifier() (peer.Identifier, bool, error) {
	var raw []byte
	err := s.db.QueryRow(`SELECT identifier FROM identity WHERE singleton = 0`).Scan(&raw)
	if err == sql.ErrNoRows {
		return peer.Identifier{}, false, nil
	}
	if err != nil {
		return peer.Identifier{}, false, errs.Newf(errs.Unspecified, "load identifier: %v", err)
	}

	id, err := peer.FromBytes(raw)
	if err != nil {
		return peer.Identifier{}, false, err
	}
	return id, true, nil
}

// SaveIdentifier upserts the node's persisted identifier. It is meaningless
// to call this for an Ephemeral-mode node -- callers gate on
// config.Persistent before reaching here.
func (s *Store) SaveIdentifier(id peer.Identifier) error {
	_, err := s.db.Exec(`
		INSERT INTO identity (singleton, identifier) VALUES (0, ?)
		ON CONFLICT(singleton) DO UPDATE SET identifier = excluded.identifier
	`, id.Bytes())
	if err != nil {
		return errs.Newf(errs.Unspecified, "save identifier: %v", err)
	}
	return nil
}

// RecordConnected appends a new open connection-history row for peerID,
// returning its row id so a later RecordDisconnected call can close it out.
func (s *Store) RecordConnected(peerID peer.Identifier, remoteAddress string, at time.Time) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO peer_history (peer_identifier, remote_address, connected_at)
		VALUES (?, ?, ?)
	`, peerID.String(), remoteAddress, at.Unix())
	if err != nil {
		return 0, errs.Newf(errs.Unspecified, "record peer connected: %v", err)
	}
	return res.LastInsertId()
}

// RecordDisconnected closes out the connection-history row opened by
// RecordConnected.
func (s *Store) RecordDisconnected(rowID int64, cause string, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE peer_history SET disconnected_at = ?, disconnect_cause = ?
		WHERE id = ?
	`, at.Unix(), cause, rowID)
	if err != nil {
		return errs.Newf(errs.Unspecified, "record peer disconnected: %v", err)
	}
	return nil
}

// ConnectionRecord is one row of a peer's connection history.
type ConnectionRecord struct {
	RemoteAddress   string
	ConnectedAt     time.Time
	DisconnectedAt  *time.Time
	DisconnectCause string
}

// History returns every connection-history entry recorded for peerID,
// newest first.
func (s *Store) History(peerID peer.Identifier) ([]ConnectionRecord, error) {
	rows, err := s.db.Query(`
		SELECT remote_address, connected_at, disconnected_at, disconnect_cause
		FROM peer_history
		WHERE peer_identifier = ?
		ORDER BY connected_at DESC
	`, peerID.String())
	if err != nil {
		return nil, errs.Newf(errs.Unspecified, "query peer history: %v", err)
	}
	defer rows.Close()

	var out []ConnectionRecord
	for rows.Next() {
		var rec ConnectionRecord
		var connectedAtUnix int64
		var disconnectedAtUnix sql.NullInt64
		var cause sql.NullString

		if err := rows.Scan(&rec.RemoteAddress, &connectedAtUnix, &disconnectedAtUnix, &cause); err != nil {
			return nil, errs.Newf(errs.Unspecified, "scan peer history row: %v", err)
		}
		rec.ConnectedAt = time.Unix(connectedAtUnix, 0)
		if disconnectedAtUnix.Valid {
			t := time.Unix(disconnectedAtUnix.Int64, 0)
			rec.DisconnectedAt = &t
		}
		rec.DisconnectCause = cause.String
		out = append(out, rec)
	}
	return out, nil
}
