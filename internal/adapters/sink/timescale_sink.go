package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"

	"github.com/CasaMack/tibber-subscribe/internal/domain"
	"github.com/CasaMack/tibber-subscribe/internal/ports"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type TimescaleSink struct {
	db        *sql.DB
	tableName string
	insert    string
}

func NewTimescaleSink(db *sql.DB, table string) (*TimescaleSink, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &TimescaleSink{
		db:        db,
		tableName: table,
		insert:    "INSERT INTO " + table + " (ts, field_name, value, category) VALUES ($1,$2,$3,$4)",
	}, nil
}

// OpenTimescaleSink opens a lib/pq pool. Connections are established on
// first write.
func OpenTimescaleSink(dsn, table string) (*TimescaleSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s, err := NewTimescaleSink(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) Write(ctx context.Context, p domain.Point) error {
	if _, err := t.db.ExecContext(ctx, t.insert, p.Timestamp, p.FieldName, p.Value, p.Category); err != nil {
		return fmt.Errorf("insert into %s: %w", t.tableName, err)
	}
	return nil
}

func (t *TimescaleSink) Close() error { return t.db.Close() }

var _ ports.Sink = (*TimescaleSink)(nil)
