package main

import (
	"context"
	"fmt"
	"time"

	"hotelbook/internal/database"
	"hotelbook/internal/hotel"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()
			db, err := database.NewDB(&cfg.Database)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("schema up to date")
			return nil
		},
	}
}

func checkHotelsCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "check-hotels",
		Short: "Validate the hotel catalogue and probe each hotel's PMS for its configured room types",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			catalog, pmsRouter, err := loadCatalog(ctx, cfg, log)
			if err != nil {
				return err
			}
			if err := catalog.Validate(); err != nil {
				return err
			}
			log.Info("catalogue valid", zap.Int("hotels", len(catalog.List())))
			if offline {
				return nil
			}
			failed := 0
			for _, res := range hotel.Probe(ctx, catalog, pmsRouter, tomorrow()) {
				fmt.Fprintln(cmd.OutOrStdout(), res.String())
				if !res.OK() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d hotel(s) failed the PMS check", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "validate the catalogue file without calling the PMS")
	return cmd
}

func tomorrow() time.Time {
	y, m, d := time.Now().AddDate(0, 0, 1).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
