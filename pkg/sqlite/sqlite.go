// Package sqlite provides a thin wrapper around database/sql for opening
// the notice/trap store backing database used by internal/notice.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if necessary) a sqlite database file, tuned for a
// single-writer/many-reader workload: one connection in read-write mode,
// unbounded connections in read-only mode.
func Open(file string, opts ...OpOption) (*sql.DB, error) {
	op := &Op{}
	if err := op.applyOpts(opts); err != nil {
		return nil, err
	}

	dsn := file
	if op.readOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro", file)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if op.readOnly {
		return db, nil
	}

	// sqlite only tolerates one writer; force a single connection so the
	// stdlib pool never hands out a concurrent writer.
	db.SetMaxOpenConns(1)
	return db, nil
}

// ReadDBSize returns the on-disk size in bytes of the database file backing db.
func ReadDBSize(ctx context.Context, db *sql.DB) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	row := db.QueryRowContext(ctx, "PRAGMA database_list")
	var seq int
	var name, file string
	if err := row.Scan(&seq, &name, &file); err != nil {
		return 0, err
	}
	if file == "" {
		return 0, nil
	}

	fi, err := os.Stat(file)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Compact runs VACUUM to reclaim space left by deleted rows.
func Compact(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "VACUUM")
	return err
}
