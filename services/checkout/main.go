package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize OpenTelemetry
	tp, err := initTracer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	mp, err := initMetrics(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down meter: %v", err)
		}
	}()

	// Initialize database and schema
	dbPool, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbPool.Close()

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Cart session store
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	carts := NewRedisCartStore(redisClient)

	// Order event publisher
	events := NewKafkaOrderEventPublisher(cfg.KafkaBrokers, cfg.OrderEventsTopic)
	defer events.Close()

	// Provider adapters, one per remote payment API
	adapters := AdapterRegistry{
		ProviderPaystack:    NewPaystackAdapter(cfg.PaystackURL, cfg.PaystackSecretKey, cfg.ProviderTimeout),
		ProviderStripe:      NewStripeAdapter(cfg.StripeURL, cfg.StripeSecretKey, cfg.ProviderTimeout),
		ProviderFlutterwave: NewFlutterwaveAdapter(cfg.FlutterwaveURL, cfg.FlutterwaveSecretKey, cfg.ProviderTimeout),
	}

	// Initialize dependencies
	repository := NewOrderRepository(dbPool)
	products := NewCatalogClient(cfg.CatalogURL, cfg.CatalogTimeout)
	checkout := NewCheckoutUseCase(repository, products, adapters)
	reconciler := NewReconcileUseCase(repository, carts, events)
	admin := NewOrderAdminUseCase(repository)
	tracer := tp.Tracer(cfg.ServiceName)
	handler := NewCheckoutHandler(checkout, reconciler, admin, tracer)

	// Setup Gin router
	r := gin.Default()
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/health", handler.HealthCheck)

	r.POST("/api/checkout", handler.InitiateCheckout)
	r.GET("/payment/callback", handler.PaymentCallback)

	r.GET("/api/orders", handler.ListOrders)
	r.GET("/api/orders/:id", handler.GetOrder)
	r.PATCH("/api/orders/:id/status", handler.UpdateOrderStatus)

	log.Printf("🚀 Checkout Service listening on port %s", cfg.Port)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func initDB(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Configure connection pool
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			log.Println("✅ Connected to orders database with connection pool")
			return pool, nil
		}
		log.Printf("⏳ Waiting for database... (%d/30)", i+1)
		time.Sleep(1 * time.Second)
	}

	pool.Close()
	return nil, fmt.Errorf("failed to connect to database after 30 attempts")
}
