package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aspoi/membership-payments/src/internal/adapter/repository/implementations"
	"github.com/aspoi/membership-payments/src/internal/config"
	"github.com/aspoi/membership-payments/src/internal/logger"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations to the postgres store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if statusOnly {
				return printPending(ctx, cmd, cfg)
			}

			if err := implementations.RunMigrations(ctx, cfg.DatabaseDSN, cfg.MigrationsDir); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}

			logger.Info("migrations completed successfully", logger.Fields{
				"dir": cfg.MigrationsDir,
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "list pending migrations without applying them")
	return cmd
}

func printPending(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	db, err := implementations.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	pending, err := implementations.Pending(ctx, db, cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("list pending migrations: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(pending) == 0 {
		fmt.Fprintln(out, "no pending migrations")
		return nil
	}
	for _, version := range pending {
		fmt.Fprintln(out, version)
	}
	return nil
}
