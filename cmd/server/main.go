package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/momo-checkout/internal/cart"
	"github.com/joao-fontenele/momo-checkout/internal/catalog"
	"github.com/joao-fontenele/momo-checkout/internal/checkout"
	"github.com/joao-fontenele/momo-checkout/internal/messaging"
	"github.com/joao-fontenele/momo-checkout/internal/orders"
	"github.com/joao-fontenele/momo-checkout/internal/payments"
	"github.com/joao-fontenele/momo-checkout/internal/reconcile"
	"github.com/joao-fontenele/momo-checkout/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	_ = godotenv.Load()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "checkout", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("checkout", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	productRepo := catalog.NewProductRepository(db)
	cartRepo := cart.NewCartRepository(db)
	orderRepo := orders.NewOrderRepository(db)

	var products checkout.CatalogStore = productRepo
	var productReads catalog.ProductReader = productRepo
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		cached := catalog.NewCachedRepository(productRepo, client, 30*time.Second)
		products = cached
		productReads = cached
		defer func() { _ = client.Close() }()
	}

	var orderEvents *messaging.Producer
	var paymentEvents *messaging.Producer
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		orderEvents = messaging.NewProducer(brokers, messaging.TopicOrderCreated)
		paymentEvents = messaging.NewProducer(brokers, messaging.TopicPaymentSettled)
		defer func() { _ = orderEvents.Close() }()
		defer func() { _ = paymentEvents.Close() }()
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	providerClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	gateway := payments.NewGateway(baseURL, 10*time.Second, logger,
		payments.NewMTNProvider(envOr("MTN_API_BASE_URL", "https://api.mtn.com"), os.Getenv("MTN_API_KEY"), providerClient),
		payments.NewAirtelProvider(envOr("AIRTEL_API_BASE_URL", "https://api.airtel.com"), os.Getenv("AIRTEL_API_KEY"), providerClient),
	)

	var orderPublisher checkout.EventPublisher
	if orderEvents != nil {
		orderPublisher = orderEvents
	}
	var paymentPublisher reconcile.EventPublisher
	if paymentEvents != nil {
		paymentPublisher = paymentEvents
	}

	checkoutService := checkout.NewService(cartRepo, products, orderRepo, gateway, orderPublisher, logger)
	checkoutHandler := checkout.NewHandler(checkoutService, orderRepo, gateway, logger)

	reconciler := reconcile.NewReconciler(gateway, orderRepo, paymentPublisher, logger)
	webhookHandler := reconcile.NewHandler(reconciler, logger)

	cartHandler := cart.NewHandler(cartRepo, logger)
	orderHandler := orders.NewHandler(orderRepo, logger)
	productHandler := catalog.NewHandler(productReads, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(checkoutHandler.HandleCheckout))
	mux.HandleFunc("GET /checkout/pending/{orderId}", telemetry.WithHTTPRoute(checkoutHandler.HandlePaymentPending))
	mux.HandleFunc("POST /checkout/webhook/{provider}", telemetry.WithHTTPRoute(webhookHandler.HandleWebhook))
	mux.HandleFunc("GET /payments/{transactionId}/status", telemetry.WithHTTPRoute(checkoutHandler.HandlePaymentStatus))
	mux.HandleFunc("GET /products/{productId}", telemetry.WithHTTPRoute(productHandler.HandleGet))
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(cartHandler.HandleAddItem))
	mux.HandleFunc("PATCH /cart/items/{productId}", telemetry.WithHTTPRoute(cartHandler.HandleUpdateItem))
	mux.HandleFunc("DELETE /cart/items/{productId}", telemetry.WithHTTPRoute(cartHandler.HandleRemoveItem))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(orderHandler.HandleUpdateStatus))
	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "checkout",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting checkout service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
