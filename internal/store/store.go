// Package store opens the per-user replica database and bundles the
// repositories bound to it. Schema evolution is an ordered list of goose
// migration steps applied once at open time.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/dmitrijs2005/lexisync/internal/repositories/collections"
	"github.com/dmitrijs2005/lexisync/internal/repositories/metadata"
	"github.com/dmitrijs2005/lexisync/internal/repositories/progress"
	"github.com/dmitrijs2005/lexisync/internal/repositories/settings"
	"github.com/dmitrijs2005/lexisync/internal/repositories/shares"
	"github.com/dmitrijs2005/lexisync/internal/repositories/taxonomy"
	"github.com/dmitrijs2005/lexisync/internal/repositories/vocabularies"
	"github.com/dmitrijs2005/lexisync/internal/store/migrations"
)

// Store is the handle to one user's replica: the database plus every
// repository bound to it. Components receive a *Store (or individual
// repositories) explicitly; there is no process-wide instance.
type Store struct {
	DB *sql.DB

	Collections  collections.Repository
	Vocabularies vocabularies.Repository
	Topics       taxonomy.Repository
	Tags         taxonomy.Repository
	Settings     settings.Repository
	Shares       shares.Repository
	Progress     progress.Repository
	Metadata     metadata.Repository
	Checkpoints  *metadata.CheckpointStore
}

// RunMigrations applies all pending schema steps in order.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the database at dsn, migrates it, and
// returns the repository bundle. Use ":memory:" in tests.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The modernc driver serializes access per connection; a single
	// connection also keeps ":memory:" databases from vanishing between
	// pool checkouts.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	meta := metadata.NewSQLiteRepository(db)
	return &Store{
		DB:           db,
		Collections:  collections.NewSQLiteRepository(db),
		Vocabularies: vocabularies.NewSQLiteRepository(db),
		Topics:       taxonomy.NewSQLiteRepository(db, taxonomy.TableTopics),
		Tags:         taxonomy.NewSQLiteRepository(db, taxonomy.TableTags),
		Settings:     settings.NewSQLiteRepository(db),
		Shares:       shares.NewSQLiteRepository(db),
		Progress:     progress.NewSQLiteRepository(db),
		Metadata:     meta,
		Checkpoints:  metadata.NewCheckpointStore(meta),
	}, nil
}

// OpenForUser opens the replica database for one user under dir. Databases
// are named per user so switching accounts never mixes replicas.
func OpenForUser(ctx context.Context, dir, userID string) (*Store, error) {
	return Open(ctx, filepath.Join(dir, fmt.Sprintf("lexisync-%s.db", userID)))
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}
