package balancestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

var NotFound = fmt.Errorf("no balance recorded")

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

// OpenDB opens (creating if needed) a sqlite database at path and applies
// the schema. path can be ":memory:".
func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}
	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}

	return db, nil
}

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Snapshot is a balance as seen at a point in time.
type Snapshot struct {
	Username string
	Time     time.Time
	Credits  int64
	Valid    bool
	Raw      string
}

func (s Store) Record(ctx context.Context, snapshot Snapshot) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into balance_snapshot(username, time, credits, valid, raw) values (?, ?, ?, ?, ?)`,
		snapshot.Username,
		snapshot.Time.Unix(),
		snapshot.Credits,
		snapshot.Valid,
		snapshot.Raw,
	)
	return err
}

// History returns up to limit snapshots for a user, newest first. A limit
// <= 0 returns everything.
func (s Store) History(ctx context.Context, username string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(
		ctx,
		`select username, time, credits, valid, raw from balance_snapshot
		where username = ?
		order by time desc, id desc
		limit ?`,
		username,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, snapshot)
	}
	return result, rows.Err()
}

// Latest returns the newest snapshot for a user, or NotFound.
func (s Store) Latest(ctx context.Context, username string) (Snapshot, error) {
	row := s.db.QueryRowContext(
		ctx,
		`select username, time, credits, valid, raw from balance_snapshot
		where username = ?
		order by time desc, id desc
		limit 1`,
		username,
	)
	snapshot, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, NotFound
	}
	return snapshot, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var snapshot Snapshot
	var unix int64
	err := row.Scan(
		&snapshot.Username,
		&unix,
		&snapshot.Credits,
		&snapshot.Valid,
		&snapshot.Raw,
	)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Time = time.Unix(unix, 0)
	return snapshot, nil
}
