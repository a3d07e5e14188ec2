/**
 * @description
 * This is the main entry point for the zakat-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, external API clients, message brokers, repositories, the core
 * application services, the hawl evaluation scheduler, and the HTTP server. It
 * wires everything together and starts the service.
 *
 * @dependencies
 * - log, log/slog, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/assetclient, pkg/pricefeed, pkg/crypto, pkg/rabbitmq: Collaborator clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/zakatech/zakat-service/internal/api"
	"github.com/zakatech/zakat-service/internal/app"
	"github.com/zakatech/zakat-service/internal/config"
	"github.com/zakatech/zakat-service/internal/store"
	"github.com/zakatech/zakat-service/pkg/assetclient"
	"github.com/zakatech/zakat-service/pkg/crypto"
	"github.com/zakatech/zakat-service/pkg/pricefeed"
	zkrabbit "github.com/zakatech/zakat-service/pkg/rabbitmq"
)

func main() {
	// Load the optional .env file before viper reads the environment.
	_ = godotenv.Load()

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.SnapshotEncryptionKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"snapshot encryption key must be configured\" env=SNAPSHOT_ENCRYPTION_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting zakat-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish lifecycle events. The service
	// can run without the broker; events are simply dropped via the fallback.
	var producer zkrabbit.Publisher
	eventProducer, err := zkrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &zkrabbit.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the asset-service.
	assetClient := assetclient.NewClient(cfg.AssetServiceURL, cfg.AssetServiceInternalAPIKey)

	// Initialize the metal spot-price feed client.
	priceClient := pricefeed.NewClient(cfg.PriceFeedBaseURL, cfg.PriceFeedAPIKey,
		time.Duration(cfg.PriceFeedCacheTTLSeconds)*time.Second)

	// Initialize the snapshot encryptor.
	encryptor, err := crypto.NewEncryptor(cfg.SnapshotEncryptionKey)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"snapshot encryptor init failed\" err=%v", err)
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	clock := app.NewRealClock()

	// Initialize the core application services with their dependencies.
	recordService := app.NewService(repository, assetClient, priceClient, encryptor, producer, clock, logger)
	paymentLedger := app.NewLedger(repository, encryptor, producer, clock, logger)

	// Initialize and start the hawl evaluation scheduler.
	tracker := app.NewTracker(repository, assetClient, priceClient, recordService, clock, logger)
	scheduler := app.NewScheduler(tracker, logger, cfg)
	scheduler.Start()

	// Initialize the API handlers.
	zakatHandlers := api.NewZakatHandlers(recordService, paymentLedger)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/zakat", api.ZakatRoutes(zakatHandlers, cfg.InternalAPIKey))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	// Let in-flight cron jobs drain before stopping the HTTP server.
	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
