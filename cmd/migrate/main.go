// Command migrate applies the SQL migrations and optionally seeds the first
// admin account.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tadbeer/helpdesk/internal/config"
	"github.com/tadbeer/helpdesk/internal/observability"
	"github.com/tadbeer/helpdesk/internal/persistence"
	"github.com/tadbeer/helpdesk/internal/repository"
	"github.com/tadbeer/helpdesk/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var (
		dir           string
		dsn           string
		adminName     string
		adminEmail    string
		adminPassword string
	)
	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.StringVar(&dir, "dir", cfg.Postgres.MigrationsDir, "directory holding *.sql migrations")
	flagSet.StringVar(&dsn, "dsn", cfg.Postgres.DSN, "postgres connection string (default: $POSTGRES_DSN)")
	flagSet.StringVar(&adminName, "seed-admin-name", "Administrator", "display name of the seeded admin")
	flagSet.StringVar(&adminEmail, "seed-admin-email", "", "create an admin with this email unless it already exists")
	flagSet.StringVar(&adminPassword, "seed-admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "password for the seeded admin (default: $SEED_ADMIN_PASSWORD)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if dsn == "" {
		return errors.New("no database configured: pass --dsn or set POSTGRES_DSN")
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgCfg := cfg.Postgres
	pgCfg.DSN = dsn
	pg, err := persistence.NewPostgres(ctx, pgCfg, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if err := persistence.RunMigrations(ctx, pg.Pool, dir, logger); err != nil {
		return err
	}

	if adminEmail == "" {
		return nil
	}
	store := repository.NewSQLStore(pg.DB)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{UserRepo: store.Users()})
	created, err := authService.EnsureAdmin(ctx, adminName, adminEmail, adminPassword)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		logger.Info("admin account created", zap.String("email", adminEmail))
	} else {
		logger.Info("admin account already present", zap.String("email", adminEmail))
	}
	return nil
}
