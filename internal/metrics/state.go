// Package metrics stores sweep and routing-engine time series (sweep
// duration, outstanding SMP count, per-engine LFT installs) in sqlite
// and, separately, keeps in-process prometheus collectors for sweep and
// engine activity (prometheus.go); the stored samples are not fed into
// those collectors.
package metrics

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"text/template"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Sample is one observation of a named series at a point in time.
// SecondaryName distinguishes per-engine or per-switch series sharing
// a Name, e.g. "lft_installs" with SecondaryName "ftree".
type Sample struct {
	UnixSeconds   int64   `json:"unix_seconds"`
	Name          string  `json:"name"`
	SecondaryName string  `json:"secondary_name,omitempty"`
	Value         float64 `json:"value"`
}

type Samples []Sample

const DefaultTableName = "sweep_metrics"

const (
	columnUnixSeconds   = "unix_seconds"
	columnName          = "metric_name"
	columnSecondaryName = "metric_secondary_name"
	columnValue         = "metric_value"
)

func CreateTable(ctx context.Context, db *sql.DB, tableName string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	%s INTEGER NOT NULL,
	%s TEXT NOT NULL,
	%s TEXT,
	%s REAL NOT NULL,
	PRIMARY KEY (%s, %s, %s)
) WITHOUT ROWID;`,
		tableName,
		columnUnixSeconds, columnName, columnSecondaryName, columnValue,
		columnUnixSeconds, columnName, columnSecondaryName,
	))
	return err
}

func InsertSample(ctx context.Context, db *sql.DB, tableName string, s Sample) error {
	query := fmt.Sprintf(`
INSERT OR REPLACE INTO %s (%s, %s, %s, %s) VALUES (?, ?, ?, ?);
`,
		tableName, columnUnixSeconds, columnName, columnSecondaryName, columnValue,
	)
	_, err := db.ExecContext(ctx, query, s.UnixSeconds, s.Name, s.SecondaryName, s.Value)
	return err
}

// ReadLastSample returns nil if no record is found.
func ReadLastSample(ctx context.Context, db *sql.DB, tableName, name, secondaryName string) (*Sample, error) {
	query := fmt.Sprintf(`
SELECT %s, %s
FROM %s
WHERE %s = ? AND %s = ?
ORDER BY %s DESC
LIMIT 1;
`,
		columnUnixSeconds, columnValue, tableName, columnName, columnSecondaryName, columnUnixSeconds,
	)

	s := Sample{Name: name, SecondaryName: secondaryName}
	err := db.QueryRowContext(ctx, query, name, secondaryName).Scan(&s.UnixSeconds, &s.Value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ReadSamplesSince returns all samples at or after since, oldest first.
func ReadSamplesSince(ctx context.Context, db *sql.DB, tableName, name, secondaryName string, since time.Time) (Samples, error) {
	query := fmt.Sprintf(`
SELECT %s, %s
FROM %s
WHERE %s >= ? AND %s = ? AND %s = ?
ORDER BY %s ASC;`,
		columnUnixSeconds, columnValue, tableName,
		columnUnixSeconds, columnName, columnSecondaryName, columnUnixSeconds,
	)

	rows, err := db.QueryContext(ctx, query, since.Unix(), name, secondaryName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	out := make(Samples, 0)
	for rows.Next() {
		s := Sample{Name: name, SecondaryName: secondaryName}
		if err := rows.Scan(&s.UnixSeconds, &s.Value); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AvgSince computes the average value of a series since a point in
// time, or across all history if since is zero.
func AvgSince(ctx context.Context, db *sql.DB, tableName, name, secondaryName string, since time.Time) (float64, error) {
	query := fmt.Sprintf(`
SELECT AVG(%s)
FROM %s
WHERE %s = ? AND %s = ? AND %s >= ?;`,
		columnValue, tableName, columnName, columnSecondaryName, columnUnixSeconds,
	)

	var sinceUnix int64
	if !since.IsZero() {
		sinceUnix = since.Unix()
	}

	var avg sql.NullFloat64
	if err := db.QueryRowContext(ctx, query, name, secondaryName, sinceUnix).Scan(&avg); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

const emaQueryTmpl = `
WITH ranked AS (
	SELECT {{.ColumnUnixSeconds}}, {{.ColumnValue}},
		ROW_NUMBER() OVER (ORDER BY {{.ColumnUnixSeconds}} ASC) AS row_num
	FROM {{.TableName}}
	WHERE {{.ColumnName}} = ? AND {{.ColumnSecondaryName}} = ? AND {{.ColumnUnixSeconds}} >= ?
	ORDER BY {{.ColumnUnixSeconds}} ASC
),
ema_calc AS (
	SELECT {{.ColumnUnixSeconds}}, {{.ColumnValue}}, row_num,
		CASE
			WHEN row_num = 1 THEN {{.ColumnValue}}
			ELSE (? * {{.ColumnValue}}) + ((1 - ?) * LAG({{.ColumnValue}}, 1) OVER (ORDER BY {{.ColumnUnixSeconds}}))
		END AS ema
	FROM ranked
)
SELECT ema FROM ema_calc ORDER BY {{.ColumnUnixSeconds}} DESC LIMIT 1;
`

type emaQueryInput struct {
	TableName           string
	ColumnUnixSeconds    string
	ColumnValue          string
	ColumnName           string
	ColumnSecondaryName  string
}

// EMASince computes the exponential moving average of a series since
// a point in time, with the smoothing window given by period.
func EMASince(ctx context.Context, db *sql.DB, tableName, name, secondaryName string, period time.Duration, since time.Time) (float64, error) {
	tmpl, err := template.New("ema").Parse(emaQueryTmpl)
	if err != nil {
		return 0, fmt.Errorf("parse ema query template: %w", err)
	}

	var query bytes.Buffer
	if err := tmpl.Execute(&query, emaQueryInput{
		TableName:          tableName,
		ColumnUnixSeconds:  columnUnixSeconds,
		ColumnValue:        columnValue,
		ColumnName:         columnName,
		ColumnSecondaryName: columnSecondaryName,
	}); err != nil {
		return 0, fmt.Errorf("execute ema query template: %w", err)
	}

	alpha := 2.0 / (period.Minutes() + 1)

	var ema sql.NullFloat64
	err = db.QueryRowContext(ctx, query.String(), name, secondaryName, since.Unix(), alpha, alpha).Scan(&ema)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	if !ema.Valid {
		return 0, nil
	}
	return ema.Float64, nil
}

func PurgeSamples(ctx context.Context, db *sql.DB, tableName string, before time.Time) (int, error) {
	rs, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s < ?;`, tableName, columnUnixSeconds), before.Unix())
	if err != nil {
		return 0, err
	}
	affected, err := rs.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
