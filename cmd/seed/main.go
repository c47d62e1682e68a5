package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/config"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/coupon"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "shop-seed").Logger()

	rootCmd := &cobra.Command{
		Use:           "seed",
		Short:         "Shop service maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		migrateCommand(),
		couponsCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			return db.ApplyMigrations(cfg.Postgres)
		},
	}
}

func couponsCommand() *cobra.Command {
	var clearFirst bool

	cmd := &cobra.Command{
		Use:   "coupons",
		Short: "create the sample coupons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pg, err := db.New(ctx, cfg.Postgres)
			if err != nil {
				return err
			}
			defer pg.Close()

			res, err := coupon.Seed(ctx, coupon.NewRepository(pg), clearFirst, time.Now().UTC())
			if err != nil {
				return err
			}
			log.Info().
				Int("created", len(res.Created)).
				Int("skipped", len(res.Skipped)).
				Msg("Coupon seeding finished")
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearFirst, "clear", false, "delete all existing coupons first")
	return cmd
}
