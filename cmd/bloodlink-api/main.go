// README: Entry point; loads config, wires services and the event bus, serves HTTP until signalled.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"bloodlink/internal/config"
	"bloodlink/internal/events"
	httptransport "bloodlink/internal/http"
	"bloodlink/internal/infra"
	"bloodlink/internal/maps"
	"bloodlink/internal/metrics"
	"bloodlink/internal/modules/hospital"
	"bloodlink/internal/modules/inventory"
	"bloodlink/internal/modules/location"
	"bloodlink/internal/modules/matching"
	"bloodlink/internal/modules/request"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := infra.NewLogger(cfg.Log.Level, cfg.Production())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("bloodlink-api exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	if cfg.DB.Migrate {
		dir, err := infra.FindMigrationsDir()
		if err != nil {
			return err
		}
		if err := infra.ApplyMigrations(ctx, dbPool, dir); err != nil {
			return err
		}
		logger.Info("migrations applied", zap.String("dir", dir))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	broker := events.NewBroker(logger, m)
	defer broker.Close()
	var publisher request.Publisher = broker
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		relay := events.NewRedisRelay(rdb, cfg.Redis.Channel, broker, logger, m)
		publisher = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("event relay stopped", zap.Error(err))
			}
		}()
	}

	var geocoder hospital.Geocoder
	if cfg.Maps.APIKey != "" {
		g, err := maps.NewGeocodeService(cfg.Maps.APIKey)
		if err != nil {
			return err
		}
		geocoder = g
	}

	hospitalSvc := hospital.NewService(hospital.NewStore(dbPool), geocoder, logger)
	inventorySvc := inventory.NewService(inventory.NewStore(dbPool), logger, m)
	locationSvc := location.NewService(location.NewStore(dbPool), logger)
	requestSvc := request.NewService(request.NewStore(dbPool), hospitalSvc, inventorySvc, publisher, logger)
	matchingSvc := matching.NewService(matching.NewStore(dbPool), requestSvc, locationSvc, cfg.Matching.RadiusKm, logger, m)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Inventory:      inventorySvc,
		Location:       locationSvc,
		Requests:       requestSvc,
		Matching:       matchingSvc,
		Hospitals:      hospitalSvc,
		Broker:         broker,
		Verifier:       verifier,
		Gatherer:       reg,
		Log:            logger,
		NearbyRadiusKm: cfg.Matching.NearbyRadiusKm,
		Heartbeat:      cfg.Stream.Heartbeat,
		StreamBuffer:   cfg.Stream.Buffer,
	})

	server := httptransport.NewServer(cfg.HTTP.Addr, router, logger)
	if err := server.Run(ctx); err != nil {
		return err
	}
	logger.Info("shutting down")
	// Streams end once their clients are closed; Shutdown then drains the rest.
	broker.Close()
	return server.Shutdown()
}
