// Package notice persists the sweep controller's user-visible events —
// Trap 64 for newly discovered endports, the SUBNET_UP marker, and the
// "errors during initialization" banner — to sqlite, queryable by
// "since" the same way a component's event history is queried.
package notice

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	v1 "github.com/osmcore/osmcore/api/v1"
)

const schemaVersion = "v1"

// DefaultTableName is the table internal/notice creates and queries
// when the caller doesn't override it.
const DefaultTableName = "osmcore_notices_" + schemaVersion

// Store persists Notice rows to a sqlite database via database/sql.
type Store struct {
	db        *sql.DB
	tableName string
}

// New wraps db, creating tableName (or DefaultTableName) if absent.
func New(ctx context.Context, db *sql.DB, tableName string) (*Store, error) {
	if tableName == "" {
		tableName = DefaultTableName
	}
	s := &Store{db: db, tableName: tableName}
	if err := s.createTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) createTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT NOT NULL PRIMARY KEY,
	kind TEXT NOT NULL,
	guid INTEGER NOT NULL,
	lid INTEGER NOT NULL,
	unix_seconds INTEGER NOT NULL,
	message TEXT
);`, s.tableName))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_unix_seconds ON %s (unix_seconds);`,
		s.tableName, s.tableName,
	))
	return err
}

// Insert appends a notice, assigning a fresh ID if n.ID is the zero UUID.
func (s *Store) Insert(ctx context.Context, n v1.Notice) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, kind, guid, lid, unix_seconds, message) VALUES (?, ?, ?, ?, ?, ?);`,
		s.tableName,
	), n.ID.String(), string(n.Kind), n.GUID, n.LID, n.Timestamp.Unix(), n.Message)
	return err
}

// Since returns every notice at or after since, oldest first.
func (s *Store) Since(ctx context.Context, since time.Time) ([]v1.Notice, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, kind, guid, lid, unix_seconds, message FROM %s WHERE unix_seconds >= ? ORDER BY unix_seconds ASC;`,
		s.tableName,
	), since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []v1.Notice
	for rows.Next() {
		var idStr, kind, message string
		var guid uint64
		var lid uint16
		var unixSeconds int64
		if err := rows.Scan(&idStr, &kind, &guid, &lid, &unixSeconds, &message); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		out = append(out, v1.Notice{
			ID:        id,
			Kind:      v1.NoticeKind(kind),
			GUID:      guid,
			LID:       lid,
			Timestamp: metav1.NewTime(time.Unix(unixSeconds, 0).UTC()),
			Message:   message,
		})
	}
	return out, rows.Err()
}

// Purge deletes every notice older than before, returning the count removed.
func (s *Store) Purge(ctx context.Context, before time.Time) (int, error) {
	rs, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE unix_seconds < ?;`, s.tableName,
	), before.Unix())
	if err != nil {
		return 0, err
	}
	n, err := rs.RowsAffected()
	return int(n), err
}

// EmitTrap64 records a new-endport trap for the given port.
func (s *Store) EmitTrap64(ctx context.Context, guid uint64, lid uint16, now time.Time) error {
	return s.Insert(ctx, v1.NewNotice(v1.NoticeKindTrap64, guid, lid, "new endport", metav1.NewTime(now)))
}

// EmitSubnetUp records the single SUBNET_UP line a successful sweep emits.
func (s *Store) EmitSubnetUp(ctx context.Context, now time.Time) error {
	return s.Insert(ctx, v1.NewNotice(v1.NoticeKindSubnetUp, 0, 0, "SUBNET UP", metav1.NewTime(now)))
}

// EmitErrorBanner records the "errors during initialization" banner.
func (s *Store) EmitErrorBanner(ctx context.Context, message string, now time.Time) error {
	return s.Insert(ctx, v1.NewNotice(v1.NoticeKindErrorBanner, 0, 0, message, metav1.NewTime(now)))
}
