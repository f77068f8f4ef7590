package store

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Querier is the subset of pgx shared by *pgx.Conn, *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Options locate a PostgreSQL database, usually behind a kubectl port-forward.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func (o Options) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.User, o.Password),
		Host:     net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		Path:     "/" + o.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Store runs queries against a test database.
type Store struct {
	db    Querier
	close func()
	log   *zap.SugaredLogger
}

func NewStore(db Querier) *Store {
	return &Store{
		db:    db,
		close: func() {},
		log:   zap.S().Named("store"),
	}
}

// Connect opens a pool and checks the database answers.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create pool for %s:%d: %w", opts.Host, opts.Port, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres at %s:%d: %w", opts.Host, opts.Port, err)
	}

	s := NewStore(pool)
	s.close = pool.Close
	return s, nil
}

func (s *Store) Close() {
	s.close()
}

// Exec runs a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	s.log.Debugw("exec", "query", query)
	_, err := s.db.Exec(ctx, query, args...)
	return err
}

// Select returns every row of query keyed by column name.
func (s *Store) Select(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	s.log.Debugw("select", "query", query)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToMap)
}
