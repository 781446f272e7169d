// README: Entry point; loads config, wires the store, index, pricing and notifier, then serves HTTP.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unrecano/taxi24/internal/config"
	"github.com/unrecano/taxi24/internal/fixtures"
	httptransport "github.com/unrecano/taxi24/internal/http"
	"github.com/unrecano/taxi24/internal/infra"
	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/modules/location"
	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/modules/pricing"
	"github.com/unrecano/taxi24/internal/modules/trip"
	"github.com/unrecano/taxi24/internal/notify"
	"github.com/unrecano/taxi24/internal/store/memory"
	"github.com/unrecano/taxi24/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo trip.Repository
	var rates pricing.RateSource
	switch cfg.Store {
	case config.StorePostgres:
		if err := postgres.MigrateUp(cfg.DB.DSN, cfg.DB.MigrationsDir); err != nil {
			log.Fatal(err)
		}
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer dbPool.Close()
		repo = postgres.New(dbPool)
		rates = pricing.NewStore(dbPool)
	default:
		log.Println("using in-memory store; data is lost on restart")
		repo = memory.New()
	}

	if cfg.Seed {
		if _, err := fixtures.LoadCore(ctx, repo); err != nil {
			log.Fatalf("seed: %v", err)
		}
		if store, ok := rates.(pricing.RateStore); ok {
			wrote, err := pricing.SeedRate(ctx, store, pricing.Rate{
				Name:     pricing.DefaultRateName,
				BaseFare: cfg.Pricing.BaseFare,
				PerKm:    cfg.Pricing.PerKm,
				Currency: cfg.Pricing.Currency,
			})
			if err != nil {
				log.Fatalf("seed pricing rate: %v", err)
			}
			if wrote {
				log.Printf("seeded pricing rate %q", pricing.DefaultRateName)
			}
		}
	}

	var index driver.Index = location.NewTreeIndex()
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal(err)
		}
		defer redisClient.Close()
		index = location.NewRedisIndex(redisClient, location.DefaultGeoKey)
	}
	drivers := driver.NewRegistry(repo.Drivers(), index)
	if err := drivers.SyncIndex(ctx); err != nil {
		log.Fatalf("driver index: %v", err)
	}
	go drivers.RunIndexSync(ctx, cfg.IndexSyncInterval)

	var notifier trip.Notifier
	if cfg.Firebase.ProjectID != "" {
		client, err := infra.NewMessaging(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatalf("firebase init: %v", err)
		}
		notifier = notify.NewFCM(client)
	}

	pricingSvc := pricing.NewService(rates, pricing.Rate{
		Name:     pricing.DefaultRateName,
		BaseFare: cfg.Pricing.BaseFare,
		PerKm:    cfg.Pricing.PerKm,
		Currency: cfg.Pricing.Currency,
	})
	tripSvc := trip.NewService(repo, pricingSvc, drivers, notifier)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Drivers:      drivers,
		Passengers:   passenger.NewService(repo.Passengers()),
		Trips:        tripSvc,
		NearRadiusKm: cfg.NearRadiusKm,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}()

	log.Printf("taxi24 listening on %s (store=%s)", cfg.HTTP.Addr, cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
