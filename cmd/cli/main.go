package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/cadvault/internal/domain"
	"github.com/yourorg/cadvault/internal/infrastructure/logger"
	"github.com/yourorg/cadvault/internal/repository"
	"github.com/yourorg/cadvault/internal/security/credentials"
	"github.com/yourorg/cadvault/internal/service"
	"github.com/yourorg/cadvault/pkg/config"
	"github.com/yourorg/cadvault/pkg/database"
	"github.com/yourorg/cadvault/pkg/database/migrations"
)

// Administrative CLI operating directly against the database and the
// resource directory, bypassing the HTTP API. Useful for provisioning and
// for forcing a reconcile pass without waiting for the worker.

var rootCmd = &cobra.Command{
	Use:   "cadvault",
	Short: "cadvault administration tool",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, _, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrations.MigrateUp(pool.GetDB()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconcile pass over the resource directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, cfg, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		log := logger.NewLogger(cfg.LogLevel)
		userRepo := repository.NewPostgresUserRepository(pool.GetDB(), log)
		folderRepo := repository.NewPostgresFolderRepository(pool.GetDB(), log)
		reconciler := service.NewReconciler(userRepo, folderRepo, cfg.ResourceRoot, log)

		if err := reconciler.Reconcile(cmd.Context(), "cli"); err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		fmt.Println("reconcile complete")
		return nil
	},
}

var (
	createUserRole string
)

var createUserCmd = &cobra.Command{
	Use:   "create-user <email> <password> <last-name> <first-name>",
	Short: "Create an account directly in the database",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, cfg, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		log := logger.NewLogger(cfg.LogLevel)
		userRepo := repository.NewPostgresUserRepository(pool.GetDB(), log)
		hasher := credentials.NewHasher()

		hash, err := hasher.Hash(args[1])
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		if createUserRole != domain.RoleUser && createUserRole != domain.RoleAdmin {
			return fmt.Errorf("invalid role %q", createUserRole)
		}

		user := &domain.User{
			Email:        args[0],
			LastName:     args[2],
			FirstName:    args[3],
			PasswordHash: hash,
			Role:         createUserRole,
		}
		if err := userRepo.Create(user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		fmt.Printf("user %d created (%s, role %s)\n", user.ID, user.Email, user.Role)
		return nil
	},
}

func connect(ctx context.Context) (*database.ConnectionPool, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.NewLogger(cfg.LogLevel)
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return pool, cfg, nil
}

func main() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	createUserCmd.Flags().StringVar(&createUserRole, "role", "user", "account role (user or admin)")
	rootCmd.AddCommand(createUserCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
