// Package server wires configuration, storage, services and transports
// together and runs the gRPC and HTTP listeners until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/tokenauth/internal/logging"
	"github.com/dmitrijs2005/tokenauth/internal/server/auth"
	"github.com/dmitrijs2005/tokenauth/internal/server/config"
	"github.com/dmitrijs2005/tokenauth/internal/server/hasher"
	"github.com/dmitrijs2005/tokenauth/internal/server/httpapi"
	"github.com/dmitrijs2005/tokenauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenauth/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/tokenauth/internal/server/grpc"
)

// Runner is a listener that serves until its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	runners []Runner
}

// openDB is a seam for tests.
var openDB = repomanager.Open

// NewApp connects to the database, applies migrations and builds the
// services and transports described by c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app, err := newApp(c, logger, db, rm)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) (*App, error) {
	codec, err := auth.NewCodec([]byte(c.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("codec init error: %w", err)
	}

	h := hasher.NewBcrypt(c.BcryptCost)
	userStore := rm.Users(db)
	roleStore := rm.Roles(db)

	sessions, err := services.NewSessionService(userStore, roleStore, h, codec, c, logger)
	if err != nil {
		return nil, err
	}
	authn := services.NewAuthenticator(userStore, codec)
	accounts := services.NewUserService(db, rm, h, logger)
	catalog := services.NewRBACService(db, rm, logger)

	var runners []Runner
	if c.EndpointAddrGRPC != "" {
		runners = append(runners, gs.NewGRPCServer(c.EndpointAddrGRPC, logger, sessions, authn, accounts))
	}
	if c.EndpointAddrHTTP != "" {
		runners = append(runners, httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, sessions, authn, accounts, catalog, c.LoginRateLimit))
	}

	return &App{config: c, logger: logger, db: db, runners: runners}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts every listener and blocks until a signal arrives, ctx is
// cancelled or one listener fails. The database is closed on return.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range app.runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	err := g.Wait()
	if app.db != nil {
		if cerr := app.db.Close(); cerr != nil {
			app.logger.Error(ctx, "error closing database", "error", cerr)
		}
	}
	if err != nil {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}
