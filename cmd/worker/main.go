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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/momo-checkout/internal/messaging"
	"github.com/joao-fontenele/momo-checkout/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	_ = godotenv.Load()

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	emailServiceURL := os.Getenv("EMAIL_SERVICE_URL")
	if emailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	brokers := strings.Split(kafkaBrokers, ",")
	orderConsumer := messaging.NewConsumer(brokers, messaging.TopicOrderCreated, "notification-worker")
	paymentConsumer := messaging.NewConsumer(brokers, messaging.TopicPaymentSettled, "notification-worker")
	defer func() { _ = orderConsumer.Close() }()
	defer func() { _ = paymentConsumer.Close() }()

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}

	handler := worker.NewNotificationHandler(emailServiceURL, httpClient, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "brokers", brokers)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return orderConsumer.Consume(groupCtx, handler.HandleOrderCreated)
	})
	group.Go(func() error {
		return paymentConsumer.Consume(groupCtx, handler.HandlePaymentSettled)
	})

	if err := group.Wait(); err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumers stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
