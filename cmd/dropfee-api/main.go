// README: Entry point; loads config, wires services, starts HTTP server and background snapshot refreshers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"dropfee/internal/config"
	httptransport "dropfee/internal/http"
	"dropfee/internal/infra"
	"dropfee/internal/logger"
	"dropfee/internal/metrics"
	"dropfee/internal/migrations"
	"dropfee/internal/modules/cart"
	"dropfee/internal/modules/pricing"
	"dropfee/internal/modules/settings"
	"dropfee/internal/modules/zone"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "dropfee-api",
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
	})
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	requireResource(ctx, logg, "firebase", err)

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	requireResource(ctx, logg, "database", err)
	defer dbPool.Close()

	if cfg.DB.AutoMigrate {
		requireResource(ctx, logg, "migrations", migrations.Up(ctx, dbPool))
	}

	redisClient, err := infra.NewRedis(ctx, cfg.Redis)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	defaultTZ, err := cfg.Pricing.Location()
	requireResource(ctx, logg, "pricing timezone", err)

	feed := infra.NewChangeFeed(redisClient, logg)

	zones := zone.NewRegistry(zone.NewStore(dbPool), zone.WithPublisher(feed), zone.WithLogger(logg))
	requireResource(ctx, logg, "zone snapshot", zones.Reload(ctx))

	resolver := settings.NewResolver(settings.NewStore(dbPool), defaultTZ, settings.WithPublisher(feed), settings.WithLogger(logg))
	requireResource(ctx, logg, "settings snapshot", resolver.Reload(ctx))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterSnapshotVersion(reg, zone.Topic, func() int64 { return zones.Snapshot().Version() })
	metrics.RegisterSnapshotVersion(reg, settings.Topic, func() int64 { return resolver.Snapshot().Version() })

	fees := pricing.NewService(zones, resolver, pricing.WithMetrics(metrics.NewFeeMetrics(reg)), pricing.WithLogger(logg))
	carts := cart.NewService(cart.NewRedisStore(redisClient, cfg.Redis.CartTTL), fees, logg)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Fees:        fees,
		Zones:       zones,
		Settings:    resolver,
		Carts:       carts,
		Verifier:    verifier,
		Logger:      logg,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Health: map[string]httptransport.HealthCheck{
			"postgres": dbPool.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(logg.WithField(gctx, "addr", cfg.HTTP.Addr), "http.listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return zones.RunRefresher(gctx, cfg.Pricing.RefreshInterval) })
	g.Go(func() error { return resolver.RunRefresher(gctx, cfg.Pricing.RefreshInterval) })
	g.Go(func() error {
		return feed.Subscribe(gctx, infra.TopicZones, func(ctx context.Context, version int64) {
			if err := zones.Reload(ctx); err != nil {
				logg.Error(logg.WithField(ctx, "remote_version", version), "zone.reload_failed", err)
			}
		})
	})
	g.Go(func() error {
		return feed.Subscribe(gctx, infra.TopicSettings, func(ctx context.Context, version int64) {
			if err := resolver.Reload(ctx); err != nil {
				logg.Error(logg.WithField(ctx, "remote_version", version), "settings.reload_failed", err)
			}
		})
	})

	if err := g.Wait(); err != nil {
		logg.Error(ctx, "dropfee-api stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "dropfee-api stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
