package store

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Column is a table column definition, e.g. {"name", "VARCHAR(64) NOT NULL"}.
type Column struct {
	Name string
	Type string
}

func createTableSQL(table string, columns []Column) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("table %s needs at least one column", table)
	}
	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		defs = append(defs, pgx.Identifier{c.Name}.Sanitize()+" "+c.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		pgx.Identifier{table}.Sanitize(), strings.Join(defs, ", ")), nil
}

func (s *Store) CreateTable(ctx context.Context, table string, columns ...Column) error {
	query, err := createTableSQL(table, columns)
	if err != nil {
		return err
	}
	return s.Exec(ctx, query)
}

// InsertRows inserts all rows in a single statement.
func (s *Store) InsertRows(ctx context.Context, table string, columns []string, rows ...[]any) error {
	if len(rows) == 0 {
		return nil
	}

	builder := psql.Insert(pgx.Identifier{table}.Sanitize()).Columns(quote(columns)...)
	for _, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row has %d values, table %s insert expects %d", len(row), table, len(columns))
		}
		builder = builder.Values(row...)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	return s.Exec(ctx, query, args...)
}

func (s *Store) CountRows(ctx context.Context, table string, opts ...CountOption) (int, error) {
	builder := psql.Select("COUNT(*)").From(pgx.Identifier{table}.Sanitize())
	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

// DeleteRows empties a table, simulating data loss before a restore.
func (s *Store) DeleteRows(ctx context.Context, table string) error {
	query, args, err := psql.Delete(pgx.Identifier{table}.Sanitize()).ToSql()
	if err != nil {
		return err
	}
	return s.Exec(ctx, query, args...)
}

type CountOption func(sq.SelectBuilder) sq.SelectBuilder

func Where(column string, value any) CountOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Where(sq.Eq{pgx.Identifier{column}.Sanitize(): value})
	}
}

func quote(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, pgx.Identifier{c}.Sanitize())
	}
	return out
}
