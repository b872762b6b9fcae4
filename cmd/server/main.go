package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tripmate/service-routemap/internal/application"
	"github.com/tripmate/service-routemap/internal/bridge"
	"github.com/tripmate/service-routemap/internal/common/health"
	"github.com/tripmate/service-routemap/internal/common/kafka"
	"github.com/tripmate/service-routemap/internal/common/logger"
	"github.com/tripmate/service-routemap/internal/common/middleware"
	"github.com/tripmate/service-routemap/internal/config"
	"github.com/tripmate/service-routemap/internal/events"
	"github.com/tripmate/service-routemap/internal/handler"
	"github.com/tripmate/service-routemap/internal/metrics"
	"github.com/tripmate/service-routemap/internal/repository"
	"github.com/tripmate/service-routemap/internal/routing"
)

const serviceName = "service-routemap"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	instanceID := uuid.NewString()
	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("instance_id", instanceID),
	)

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DBConfig.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(&repository.ItineraryModel{}, &repository.FeedbackModel{}); err != nil {
		log.Fatal("failed to run auto-migration", zap.Error(err))
	}
	log.Info("database migration completed")

	// Repositories and collaborators
	itineraryRepo := repository.NewGormItineraryRepository(db)
	feedbackRepo := repository.NewGormFeedbackRepository(db)
	collector := metrics.NewCollector()
	tmap := routing.NewClient(routing.Config{
		BaseURL: cfg.TMapConfig.BaseURL,
		AppKey:  cfg.TMapConfig.AppKey,
		Timeout: cfg.TMapConfig.Timeout,
	}, log)

	deps := bridge.ControllerDeps{
		Store:   itineraryRepo,
		Routes:  tmap,
		Metrics: collector,
	}

	// Kafka producer is optional; a nil publisher keeps events local.
	var publisher application.EventPublisher
	var producer *kafka.Producer
	if cfg.KafkaConfig.Enabled {
		producer = kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = producer.Close() }()

		p := events.NewPublisher(producer, events.InstanceSource(instanceID), log)
		publisher = p
		deps.Publisher = p
	}

	// Bridge transport: NATS when configured, in-process channels otherwise
	transports := bridge.MemoryTransports(cfg.Bridge.CommandBuffer)
	if cfg.NATSConfig.URL != "" {
		nc, err := nats.Connect(cfg.NATSConfig.URL,
			nats.Name(serviceName+"/"+instanceID),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn("nats disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
			}),
			nats.ClosedHandler(func(_ *nats.Conn) {
				log.Info("nats connection closed")
			}),
		)
		if err != nil {
			log.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer nc.Close()

		buffer := cfg.Bridge.CommandBuffer
		transports = func(sessionID string) (bridge.Transport, error) {
			return bridge.NewNATSTransport(nc, sessionID, buffer, log)
		}
		log.Info("bridge sessions use nats transport", zap.String("url", cfg.NATSConfig.URL))
	}

	hub := bridge.NewHub(deps, bridge.HubConfig{
		Conversion:  bridge.ConversionSite(cfg.Bridge.ConversionSite),
		RedrawDelay: cfg.Bridge.RedrawDelay,
	}, transports, log)

	// Application services
	itineraryService := application.NewItineraryService(itineraryRepo, tmap, publisher, hub, collector, log)
	feedbackService := application.NewFeedbackService(feedbackRepo, itineraryRepo, log)
	mapService := application.NewMapService(hub, log)

	// Itinerary changes from other instances reload sessions mounted here
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var consumer *events.ItineraryEventConsumer
	if cfg.KafkaConfig.Enabled {
		consumer = events.NewItineraryEventConsumer(
			cfg.KafkaConfig.Brokers,
			cfg.KafkaConfig.GroupID+"-"+instanceID,
			events.InstanceSource(instanceID),
			hub,
			log,
		)
		defer func() { _ = consumer.Close() }()

		go func() {
			log.Info("starting itinerary event consumer")
			if err := consumer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("itinerary event consumer error", zap.Error(err))
			}
		}()
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())

	health.NewHandler(serviceName, map[string]health.Checker{
		"postgres": health.GormChecker(db),
	}).RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	handler.NewItineraryHandler(itineraryService).RegisterRoutes(&router.RouterGroup)
	handler.NewFeedbackHandler(feedbackService).RegisterRoutes(&router.RouterGroup)
	handler.NewMapHandler(mapService).RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         listenAddr(cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}
	hub.CloseAll()

	log.Info(serviceName + " stopped")
}

func listenAddr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}
