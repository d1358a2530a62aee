// README: Entry point; loads config, wires services, starts the HTTP server and shuts down on signal.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"wali/internal/config"
	httptransport "wali/internal/http"
	"wali/internal/infra"
	"wali/internal/modules/dispatch"
	"wali/internal/modules/geo"
	"wali/internal/modules/order"
	"wali/internal/modules/payment"
	"wali/internal/modules/pricing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	infra.NewLogger(os.Stderr, cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("wali-api exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := infra.SetupTracing()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	if cfg.DB.MigrationsDir != "" {
		if err := infra.ApplyMigrations(ctx, dbPool, cfg.DB.MigrationsDir); err != nil {
			return err
		}
	}

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	area := geo.DefaultServiceArea()
	var source pricing.TariffSource = pricing.FileSource{Path: cfg.Pricing.File}
	if cfg.Pricing.Source == config.TariffSourceDB {
		source = pricing.NewStore(dbPool)
	}
	pricingSvc := pricing.NewService(source, area)
	if err := pricingSvc.Reload(ctx); err != nil {
		return err
	}

	orderSvc := order.NewService(order.NewStore(dbPool), pricingSvc, order.NewRedisCache(redisClient, cfg.Orders.CacheTTL))

	var adapters []payment.Adapter
	if cfg.Payments.PaystackSecret != "" {
		adapters = append(adapters, payment.NewPaystack(cfg.Payments.PaystackSecret))
	}
	if cfg.Payments.FlutterwaveSecretHash != "" {
		adapters = append(adapters, payment.NewFlutterwave(cfg.Payments.FlutterwaveSecretHash))
	}
	if len(adapters) == 0 {
		slog.Warn("no payment provider secrets configured; webhooks will answer 404")
	}
	reconciler := payment.NewReconciler(payment.NewRegistry(adapters...), orderSvc)

	dispatchSvc := dispatch.NewService(dispatch.NewStore(redisClient), orderSvc, area, dispatch.Config{
		RadiusKm:       cfg.Dispatch.RadiusKm,
		MaxCandidates:  cfg.Dispatch.MaxCandidates,
		PositionMaxAge: cfg.Dispatch.PositionMaxAge,
	})

	server := httptransport.NewServer(cfg.HTTP.Addr, httptransport.ServerDeps{
		Order:      orderSvc,
		Pricing:    pricingSvc,
		Payments:   reconciler,
		Dispatch:   dispatchSvc,
		AdminToken: cfg.HTTP.AdminToken,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.HTTP.ShutdownTimeout)
	})
	g.Go(func() error {
		return reloadOnHangup(gctx, pricingSvc)
	})
	return g.Wait()
}

// reloadOnHangup reloads the tariff table on SIGHUP.
func reloadOnHangup(ctx context.Context, svc *pricing.Service) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := svc.Reload(ctx); err != nil {
				slog.ErrorContext(ctx, "tariff reload failed; keeping previous table", "err", err)
			}
		}
	}
}
