// Package cli implements the lexisync command line tool: a thin shell over
// the sync engine for inspecting and driving a local replica.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/dmitrijs2005/lexisync/internal/auth"
	"github.com/dmitrijs2005/lexisync/internal/config"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/remote"
	"github.com/dmitrijs2005/lexisync/internal/services"
	"github.com/dmitrijs2005/lexisync/internal/store"
)

// App bundles the engine components behind the subcommand dispatcher.
type App struct {
	cfg     *config.Config
	log     logging.Logger
	tokens  auth.Provider
	st      *store.Store
	syncer  *services.Syncer
	catalog *services.Catalog
	out     io.Writer
}

// NewApp wires an App from configuration. The replica database is opened for
// the currently signed-in user; with no stored credentials a throwaway
// "anonymous" replica is used so read-only commands still work.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	tokens := auth.NewFileProvider(cfg.AuthFile)

	tk, err := tokens.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	userID := tk.UserID
	if userID == "" {
		userID = "anonymous"
	}

	st, err := store.OpenForUser(ctx, cfg.DataDir, userID)
	if err != nil {
		return nil, err
	}

	client := remote.NewClient(cfg.ServerURL, cfg.AppID, cfg.APIKey, http.DefaultClient)
	syncer := services.NewSyncer(st, tokens, client, log, cfg.ServerURL, cfg.PurgeRetention)
	catalog := services.NewCatalog(st, log)

	return &App{
		cfg:     cfg,
		log:     log,
		tokens:  tokens,
		st:      st,
		syncer:  syncer,
		catalog: catalog,
		out:     os.Stdout,
	}, nil
}

// Close releases the replica database.
func (a *App) Close() error {
	return a.st.Close()
}

// Run dispatches one subcommand. args excludes the program name.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return nil
	}

	switch args[0] {
	case "status":
		return a.cmdStatus(ctx)
	case "sync":
		return a.cmdSync(ctx)
	case "purge":
		return a.cmdPurge(ctx)
	case "login":
		return a.cmdLogin(ctx, args[1:])
	case "collections":
		return a.cmdCollections(ctx)
	default:
		a.usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, `usage: lexisync <command>

commands:
  status        show sync state of the local replica
  sync          run one push/pull session against the server
  purge         remove confirmed tombstones past the retention window
  login         store credentials obtained from the auth service
  collections   list live collections in the local replica`)
}
