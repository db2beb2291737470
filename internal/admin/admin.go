// Package admin implements the operator commands of tokenauth-admin:
// schema initialisation and superuser creation.
package admin

import (
	"bufio"
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/dmitrijs2005/tokenauth/internal/logging"
	"github.com/dmitrijs2005/tokenauth/internal/server/config"
	"github.com/dmitrijs2005/tokenauth/internal/server/hasher"
	"github.com/dmitrijs2005/tokenauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenauth/internal/server/services"
)

const (
	CommandInitDB          = "init-db"
	CommandCreateSuperuser = "create-superuser"
)

var ErrUnknownCommand = errors.New("unknown command")

// openDB is a seam for tests.
var openDB = repomanager.Open

type App struct {
	config *config.Config
	logger logging.Logger
	rm     repomanager.RepositoryManager
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config, logger logging.Logger, in io.Reader, out io.Writer) *App {
	return &App{
		config: c,
		logger: logger.With("module", "admin"),
		rm:     repomanager.NewPostgresRepositoryManager(),
		in:     bufio.NewReader(in),
		out:    out,
	}
}

// Usage describes the available commands.
func Usage(w io.Writer) {
	fmt.Fprintf(w, "usage: tokenauth-admin <command> [flags]\n\ncommands:\n")
	fmt.Fprintf(w, "  %-17s apply database migrations\n", CommandInitDB)
	fmt.Fprintf(w, "  %-17s create an account with full access\n", CommandCreateSuperuser)
}

// Run executes command against the configured database.
func (a *App) Run(ctx context.Context, command string) error {
	var run func(context.Context, *sql.DB) error
	switch command {
	case CommandInitDB:
		run = a.initDB
	case CommandCreateSuperuser:
		run = a.createSuperuser
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}

	db, err := openDB(ctx, a.config.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	return run(ctx, db)
}

func (a *App) initDB(ctx context.Context, db *sql.DB) error {
	if err := a.rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}
	a.logger.Info(ctx, "database initialised")
	fmt.Fprintln(a.out, "Database schema is up to date.")
	return nil
}

func (a *App) createSuperuser(ctx context.Context, db *sql.DB) error {
	email, err := GetSimpleText(a.in, "Email", a.out)
	if err != nil {
		return err
	}
	firstName, err := GetSimpleText(a.in, "First name", a.out)
	if err != nil {
		return err
	}
	lastName, err := GetSimpleText(a.in, "Last name", a.out)
	if err != nil {
		return err
	}

	password, err := GetPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := GetPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if subtle.ConstantTimeCompare(password, confirm) != 1 {
		return errors.New("passwords do not match")
	}

	svc := services.NewUserService(db, a.rm, hasher.NewBcrypt(a.config.BcryptCost), a.logger)
	user, err := svc.CreateSuperuser(ctx, services.RegisterInput{
		Email:     email,
		Password:  string(password),
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Superuser %s created (id=%s).\n", user.Email, user.ID)
	return nil
}
