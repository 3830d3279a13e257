package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"git.taler.net/nexus/internal/config"
	"git.taler.net/nexus/internal/data/mongo"
	"git.taler.net/nexus/internal/data/postgres"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/ebics"
	"git.taler.net/nexus/internal/facadebus"
	"git.taler.net/nexus/internal/iso20022"
	"git.taler.net/nexus/internal/logger"
	"git.taler.net/nexus/internal/platform/messaging/consumers"
	"git.taler.net/nexus/internal/platform/messaging/producers"
	"git.taler.net/nexus/internal/platform/persistence"
	"git.taler.net/nexus/internal/worker/bankprocessor"
	"git.taler.net/nexus/internal/worker/consumer"
	"git.taler.net/nexus/internal/worker/outbox_poller"
)

// ebicsRequestTimeout bounds a single EBICS HTTP round trip.
const ebicsRequestTimeout = 60 * time.Second

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("nexus_worker")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	log.Info("Starting nexus-worker", "app_name", cfg.Application.Name, "env", cfg.Application.Env)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	bankAccounts := postgres.NewBankAccountRepository(log, postgresDB)
	bankConnections := postgres.NewBankConnectionRepository(log, postgresDB)
	ebicsSubscribers := postgres.NewEbicsSubscriberRepository(log, postgresDB)
	bankMessages := postgres.NewBankMessageRepository(log, postgresDB)
	bankTransactions := postgres.NewBankTransactionRepository(log, postgresDB)
	initiations := postgres.NewPaymentInitiationRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	facades := postgres.NewFacadeRepository(log, postgresDB)
	extensions := mongo.NewFacadeExtensionRepository(log, mongoDB.Database())

	clock := shared.SystemClock{}

	transport := ebics.NewHTTPTransport(ebicsRequestTimeout, log)
	ebicsClient := ebics.NewClient(transport, clock, log)

	ingestor := iso20022.NewIngestor(postgresDB, bankAccounts, bankTransactions, initiations, bankMessages, outboxRepo, log)

	bus := facadebus.New(facades, extensions, initiations, log)

	processor, err := bankprocessor.New(
		cfg.WorkerPool.Size,
		bankAccounts,
		bankConnections,
		ebicsSubscribers,
		bankMessages,
		initiations,
		ebicsClient,
		ingestor,
		bus,
		clock,
		log,
	)
	if err != nil {
		log.Error("Failed to initialize bank processor", "error", err)
		os.Exit(1)
	}

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	bankTaskHandler := consumer.NewBankTaskHandler(log, processor, dlqProducer)

	ingestedProducer, err := producers.NewIngestedProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize ingested Kafka producer", "error", err)
		os.Exit(1)
	}

	notifier := outbox_poller.NewIngestionNotifier(outboxRepo, ingestedProducer, bus, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, notifier, log)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer", "topic", cfg.Kafka.BankTaskTopic, "group", cfg.Kafka.ConsumerGroup)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.BankTaskTopic, cfg.Kafka.ConsumerGroup, bankTaskHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting outbox poller", "interval", cfg.Outbox.PollingInterval.String(), "batch_size", cfg.Outbox.BatchSize)
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}
	if err := ingestedProducer.Close(); err != nil {
		log.Error("Error closing ingested Kafka producer", "error", err)
	}
	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("nexus-worker shutdown with errors", "error", serviceErr)
	} else {
		log.Info("nexus-worker shutdown completed successfully")
	}
}
