package main

import (
	"fmt"

	"github.com/rpattn/socialql/internal/config"
	"github.com/rpattn/socialql/internal/db"
	"github.com/rpattn/socialql/internal/logging"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration commands",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, cleanup, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		return db.RunMigrations(conn.SQL(), logging.MustNew("info", false))
	},
}

var rollbackSteps int

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, cleanup, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		return db.RollbackMigrations(conn.SQL(), rollbackSteps, logging.MustNew("info", false))
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func connect(cmd *cobra.Command) (*db.Connection, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.NewConnection(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, conn.Close, nil
}
