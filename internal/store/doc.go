// Package store is the PostgreSQL helper used by backup and restore specs to
// seed a database before a backup and check its content after a restore.
//
// Queries are built with squirrel using dollar placeholders and executed
// through pgx. Identifiers are quoted with pgx.Identifier.
//
// # Architecture Overview
//
//	┌───────────────────────────────────────────────────────────┐
//	│                       Store (facade)                      │
//	├───────────────────────────────────────────────────────────┤
//	│  Exec / Select        │  CreateTable / InsertRows /       │
//	│  (raw SQL)            │  CountRows / DeleteRows (squirrel)│
//	├───────────────────────┴───────────────────────────────────┤
//	│                 Querier (pgxpool.Pool, pgx.Conn)          │
//	└───────────────────────────────────────────────────────────┘
//
// # Connecting
//
// The database under test runs inside the cluster, so it is reached through
// a port-forward started by the caller:
//
//	┌──────────┬───────────────────────────────────────────────┐
//	│ Field    │ Description                                   │
//	├──────────┼───────────────────────────────────────────────┤
//	│ Host     │ Usually 127.0.0.1                             │
//	│ Port     │ Local end of the port-forward                 │
//	│ User     │ Database role                                 │
//	│ Password │ Role password                                 │
//	│ Database │ Database name                                 │
//	└──────────┴───────────────────────────────────────────────┘
//
// SSL is disabled.
//
// # Usage Example
//
//	db, err := store.Connect(ctx, store.Options{
//	    Host: "127.0.0.1", Port: 15432,
//	    User: "riotkit", Password: "riotkit", Database: "app",
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	_ = db.CreateTable(ctx, "movies",
//	    store.Column{Name: "id", Type: "SERIAL PRIMARY KEY"},
//	    store.Column{Name: "title", Type: "TEXT NOT NULL"},
//	)
//	_ = db.InsertRows(ctx, "movies", []string{"title"}, []any{"Strike"})
//	count, _ := db.CountRows(ctx, "movies")
package store
