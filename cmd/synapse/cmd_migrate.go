package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tradewire/synapse/internal/config"
	"github.com/tradewire/synapse/internal/infrastructure/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cfg.Database.DSN == "" {
				return fmt.Errorf("migrate requires database.dsn")
			}

			manager, err := db.NewManager(cfg.Database)
			if err != nil {
				return fmt.Errorf("open postgres store: %w", err)
			}
			defer manager.Close()

			if err := manager.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info().Msg("Schema migration applied")
			return nil
		},
	}
}
