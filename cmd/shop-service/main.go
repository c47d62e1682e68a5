package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/config"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/coupon"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db"
	handler "github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/handler/http"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/health"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/payment"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/transport"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/user"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.App)

	log.Info().Msg("Shop service starting...")

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	userService := user.NewService(user.NewRepository(pg))

	catalogRepo := catalog.NewRepository(pg)
	catalogService := catalog.NewService(catalogRepo)

	cartRepo := cart.NewRepository(pg)
	cartService := cart.NewService(pg, cartRepo, catalogRepo)

	couponService := coupon.NewService(coupon.NewRepository(pg))

	orderService := order.NewService(pg, order.NewRepository(pg), cartRepo, catalogRepo, couponService)

	gateway := payment.NewSandboxGateway(payment.IntentStatus(cfg.Payment.SandboxOutcome))
	paymentService := payment.NewService(pg, payment.NewRepository(pg), orderService, gateway, cfg.Payment.Currency)

	guard := handler.NewGuard(userService)
	router := transport.NewRouter(pg,
		handler.NewUserHandler(userService),
		handler.NewCatalogHandler(catalogService, guard),
		handler.NewCartHandler(cartService, guard),
		handler.NewCouponHandler(couponService, guard),
		handler.NewOrderHandler(orderService, guard),
		handler.NewPaymentHandler(paymentService, guard),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	healthServer := health.NewServer(pg, cfg.App.HealthCheckInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return healthServer.Run(gctx, ":"+cfg.App.GRPCHealthPort)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service stopped with error")
		pg.Close()
		os.Exit(1)
	}
	log.Info().Msg("Server stopped")
}

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", health.ServiceName).Logger()
}
