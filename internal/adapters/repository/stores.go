// Package repository opens the data store selected by configuration.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vncsmyrnk/polling-app/internal/adapters/repository/firestore"
	"github.com/vncsmyrnk/polling-app/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/polling-app/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/polling-app/internal/adapters/repository/sqlite"
	"github.com/vncsmyrnk/polling-app/internal/config"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

// Stores bundles the repositories of one backend with the function that
// releases its connections.
type Stores struct {
	Polls ports.PollRepository
	Users ports.UserRepository
	Auth  ports.AuthRepository

	close func() error
}

func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the configured backend. Postgres is migrated and SQLite
// gets its schema before Open returns.
func Open(ctx context.Context, cfg config.StoreConfig) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &Stores{
			Polls: postgres.NewPollRepository(db),
			Users: postgres.NewUserRepository(db),
			Auth:  postgres.NewAuthRepository(db),
			close: db.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Polls: sqlite.NewPollRepository(db),
			Users: sqlite.NewUserRepository(db),
			Auth:  sqlite.NewAuthRepository(db),
			close: db.Close,
		}, nil

	case config.DriverFirestore:
		client, err := firestore.NewClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentials)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Polls: firestore.NewPollRepository(client),
			Users: firestore.NewUserRepository(client),
			Auth:  firestore.NewAuthRepository(client),
			close: client.Close,
		}, nil

	case config.DriverMemory:
		slog.Warn("using the in-memory store; data is lost on restart")
		return &Stores{
			Polls: memory.NewPollRepository(),
			Users: memory.NewUserRepository(),
			Auth:  memory.NewAuthRepository(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
