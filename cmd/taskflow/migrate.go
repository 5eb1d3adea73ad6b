package main

import (
	"errors"
	"fmt"

	"github.com/diewo77/taskflow/internal/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			useSQL, _ := cmd.Flags().GetBool("sql")

			cfg, log, conn, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if useSQL {
				if !cfg.Database.IsPostgres() {
					return errors.New("--sql requires DB_DRIVER=postgres")
				}
				if err := db.RunSQLMigrations(cfg.Database.URL()); err != nil {
					return fmt.Errorf("sql migrations: %w", err)
				}
				log.Info("sql migrations applied")
				return nil
			}
			if err := db.Migrate(conn); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			v, err := db.CurrentVersion(conn)
			if err != nil {
				return err
			}
			log.Info("migrations applied", zap.Int("version", v))
			return nil
		},
	}
	cmd.Flags().Bool("sql", false, "Apply the embedded SQL files with golang-migrate (postgres only)")
	return cmd
}

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-db",
		Short: "Drop every table and recreate the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return errors.New("reset-db deletes all data; pass --yes to confirm")
			}
			_, log, conn, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if err := db.Reset(conn); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			log.Warn("database reset")
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm that all data will be deleted")
	return cmd
}
