package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	applicationservice "landregistry/internal/application/service"
	applicationstore "landregistry/internal/application/store"
	certificatecache "landregistry/internal/certificate/cache"
	certificateservice "landregistry/internal/certificate/service"
	certificatestore "landregistry/internal/certificate/store"
	parcelservice "landregistry/internal/parcel/service"
	parcelstore "landregistry/internal/parcel/store"
	"landregistry/internal/platform/config"
	"landregistry/internal/platform/httpserver"
	"landregistry/internal/platform/logger"
	"landregistry/internal/platform/metrics"
	"landregistry/internal/platform/middleware"
	"landregistry/internal/platform/postgres"
	platformredis "landregistry/internal/platform/redis"
	"landregistry/internal/stats"
	httptransport "landregistry/internal/transport/http"
	"landregistry/pkg/audit"
	auditpostgres "landregistry/pkg/audit/store/postgres"
	"landregistry/pkg/platform/tx"
)

// main wires the dependency graph and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()
	auditStore := auditpostgres.New(db)
	recorder := audit.NewRecorder(auditStore)
	coordinator := tx.NewPostgresCoordinator(db, cfg.TxTimeout)

	parcels := parcelservice.New(parcelstore.NewPostgres(db), recorder, coordinator,
		parcelservice.WithLogger(log), parcelservice.WithMetrics(m))

	certOpts := []certificateservice.Option{
		certificateservice.WithLogger(log),
		certificateservice.WithMetrics(m),
	}
	if redisClient != nil {
		certOpts = append(certOpts, certificateservice.WithVerificationCache(
			certificatecache.New(redisClient.Client, cfg.Redis.VerifyTTL, log)))
	}
	certificates := certificateservice.New(certificatestore.NewPostgres(db), recorder, coordinator, certOpts...)

	applications := applicationservice.New(applicationstore.NewPostgres(db), parcelstore.NewPostgres(db),
		certificates, recorder, coordinator,
		applicationservice.WithLogger(log), applicationservice.WithMetrics(m))

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		JWTValidator: middleware.NewJWTValidator(cfg.JWTSigningKey),
		Parcels:      parcels,
		Applications: applications,
		Certificates: certificates,
		Stats:        stats.New(parcels, applications, certificates),
		Audit:        auditStore,
		Health: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			if redisClient != nil {
				return redisClient.Health(ctx)
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting land registry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
