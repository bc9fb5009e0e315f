/**
 * @description
 * This is the main entry point for the ticket-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the payment provider client, message brokers, repositories, the
 * core application service, background jobs, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/prometheus/client_golang: The /metrics endpoint.
 * - internal/api, internal/app, internal/config, internal/scheduler, internal/store: Internal packages.
 * - pkg/paymentclient: Read-only client for the payment provider's query API.
 * - pkg/rabbitmq: Client for RabbitMQ.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rifaops/ticket-service/internal/api"
	"github.com/rifaops/ticket-service/internal/app"
	"github.com/rifaops/ticket-service/internal/config"
	"github.com/rifaops/ticket-service/internal/scheduler"
	"github.com/rifaops/ticket-service/internal/store"
	"github.com/rifaops/ticket-service/pkg/paymentclient"
	rmq "github.com/rifaops/ticket-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Println("level=warn component=bootstrap msg=\"internal api key not configured; admin surface disabled\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting ticket-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Pool sizing for reservation bursts during campaign launches.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish claim lifecycle events. The
	// allocation path must keep working when the broker is down, so failure
	// degrades to the no-op fallback rather than aborting startup.
	var publisher rmq.Publisher
	rabbitProducer, err := rmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		publisher = &rmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		publisher = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the read-only payment provider client used by reconciliation.
	var ledger app.PaymentLedger
	if strings.TrimSpace(cfg.PaymentProviderBaseURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"payment provider not configured; reconciliation disabled\" env=PAYMENT_PROVIDER_BASE_URL")
	} else {
		ledger = paymentclient.NewClient(cfg.PaymentProviderBaseURL, cfg.PaymentProviderToken)
	}

	// Optional Redis connection for distributed reservation rate limiting.
	var redisClient *redis.Client
	if cfg.ReserveRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; reservation rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; reservation rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; reservation rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	ticketService := app.NewService(
		repository,
		ledger,
		publisher,
		time.Duration(cfg.HoldDurationMinutes)*time.Minute,
		cfg.ReconcileAutoRepair,
	)
	if redisClient != nil {
		ticketService.SetReserveRateLimiter(
			app.NewRedisReserveRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
			cfg.ReserveRateLimitPerMinute,
		)
	}

	// Initialize the API handlers and router.
	ticketHandlers := api.NewTicketHandlers(ticketService)
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Mount("/tickets", api.TicketRoutes(ticketHandlers, cfg.InternalAPIKey))

	// Wire up the payment status consumer: push confirmations from the checkout
	// collaborator arrive over the broker; reconciliation backstops lost events.
	paymentConsumer := app.NewPaymentEventConsumer(ticketService)
	rabbitConsumer, err := rmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; relying on confirm endpoint and reconciliation\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()

		paymentBindings := map[string]func([]byte) bool{
			"payment.status.approved":  paymentConsumer.HandleMessage,
			"payment.status.failed":    paymentConsumer.HandleMessage,
			"payment.status.declined":  paymentConsumer.HandleMessage,
			"payment.status.cancelled": paymentConsumer.HandleMessage,
		}
		if err := rabbitConsumer.ConsumeWithBindings("checkout.events", cfg.PaymentEventQueue, paymentBindings); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"payment consumer start failed\" err=%v", err)
		}
	}

	// Start the background jobs: expiry sweeps and periodic reconciliation.
	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	jobScheduler := scheduler.NewScheduler(ticketService, slogger, scheduler.Config{
		SweepSchedule:          cfg.SweepSchedule,
		ReconcileSchedule:      cfg.ReconcileSchedule,
		ReconcileWindowMinutes: cfg.ReconcileWindowMinutes,
	})
	jobScheduler.Start()
	defer func() {
		<-jobScheduler.Stop().Done()
	}()

	// Start the HTTP server.
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
