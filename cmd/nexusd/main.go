package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.taler.net/nexus/internal/api"
	"git.taler.net/nexus/internal/api/service"
	"git.taler.net/nexus/internal/config"
	"git.taler.net/nexus/internal/data/postgres"
	"git.taler.net/nexus/internal/domain/nexususer"
	"git.taler.net/nexus/internal/domain/paymentinitiation"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/ebics"
	"git.taler.net/nexus/internal/iso20022"
	"git.taler.net/nexus/internal/logger"
	"git.taler.net/nexus/internal/platform/messaging/producers"
	"git.taler.net/nexus/internal/platform/persistence"
	"git.taler.net/nexus/internal/scheduler"
	"github.com/google/uuid"
)

// ebicsRequestTimeout bounds a single EBICS HTTP round trip issued from
// the key-management routes, which call the bank synchronously.
const ebicsRequestTimeout = 60 * time.Second

func main() {
	if len(os.Args) < 2 {
		runServe()
		return
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "reset-tables":
		runResetTables()
	case "superuser":
		runSuperuser(os.Args[2:])
	case "gen-pain":
		runGenPain(os.Args[2:])
	case "parse-camt":
		runParseCamt(os.Args[2:])
	default:
		runServe()
	}
}

func loadConfigOrExit() *config.Config {
	cfg, err := config.LoadConfig("nexusd")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func runServe() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg := loadConfigOrExit()
	log := logger.NewLogger(cfg)
	log.Info("Starting nexusd", "app_name", cfg.Application.Name, "env", cfg.Application.Env)

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
	offeredAccounts := postgres.NewOfferedAccountRepository(log, postgresDB)
	initiations := postgres.NewPaymentInitiationRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	scheduledTasks := postgres.NewScheduledTaskRepository(log, postgresDB)
	facades := postgres.NewFacadeRepository(log, postgresDB)
	users := postgres.NewNexusUserRepository(log, postgresDB)

	clock := shared.SystemClock{}

	transport := ebics.NewHTTPTransport(ebicsRequestTimeout, log)
	ebicsClient := ebics.NewClient(transport, clock, log)

	ingestor := iso20022.NewIngestor(postgresDB, bankAccounts, bankTransactions, initiations, bankMessages, outboxRepo, log)

	bankTaskProducer, err := producers.NewBankTaskProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize bank task Kafka producer", "error", err)
		os.Exit(1)
	}

	bankConnectionService := service.NewBankConnectionService(bankConnections, ebicsSubscribers, offeredAccounts, bankAccounts, ebicsClient, clock, log)
	bankAccountService := service.NewBankAccountService(postgresDB, bankAccounts, bankTransactions, initiations, scheduledTasks, bankMessages, ingestor, bankTaskProducer, clock, cfg.Server.TransactionPollWindow, log)
	facadeService := service.NewFacadeService(facades, log)
	userService := service.NewUserService(users, log)

	server := api.NewServer(log, cfg, users, bankConnectionService, bankAccountService, facadeService, userService)
	log.Info("REST server initialized")

	sched := scheduler.New(scheduledTasks, bankTaskProducer, cfg.Scheduler.PollingInterval, clock, log)

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	go func() {
		log.Info("Starting scheduler", "interval", cfg.Scheduler.PollingInterval.String())
		sched.Run(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err := bankTaskProducer.Close(); err != nil {
		log.Error("Error closing bank task Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("nexusd shutdown with errors", "error", serverErr)
	} else {
		log.Info("nexusd shutdown completed successfully")
	}
}

// runResetTables re-applies migrations against a possibly-empty
// database, for local development and CI fixtures.
func runResetTables() {
	cfg := loadConfigOrExit()
	log := logger.NewLogger(cfg)
	if err := persistence.RunMigrations(log, cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
		log.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("Migrations applied")
}

// runSuperuser creates a superuser principal for the HTTP Basic auth
// routes: nexusd superuser --password <password> <username>.
func runSuperuser(args []string) {
	fs := flag.NewFlagSet("superuser", flag.ExitOnError)
	password := fs.String("password", "", "password for the new superuser")
	fs.Parse(args)
	if fs.NArg() < 1 || *password == "" {
		fmt.Println("usage: nexusd superuser --password <password> <username>")
		os.Exit(1)
	}
	username := fs.Arg(0)

	appCtx := context.Background()
	cfg := loadConfigOrExit()
	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresDB.Close()

	users := postgres.NewNexusUserRepository(log, postgresDB)
	u, err := nexususer.New(username, *password, true)
	if err != nil {
		log.Error("Failed to build superuser", "error", err)
		os.Exit(1)
	}
	if err := users.Create(appCtx, u); err != nil {
		log.Error("Failed to create superuser", "error", err)
		os.Exit(1)
	}
	log.Info("Superuser created", "username", username)
}

// runGenPain prints a sample pain.001 document built from a fixed
// initiation, useful for eyeballing the wire format a given dialect
// produces without a live payment initiation.
func runGenPain(args []string) {
	fs := flag.NewFlagSet("gen-pain", flag.ExitOnError)
	dialect := fs.String("dialect", string(shared.DialectGenericH004), "EBICS dialect")
	debtorIBAN := fs.String("debtor-iban", "DE00000000000000000000", "debtor IBAN")
	debtorBIC := fs.String("debtor-bic", "TESTDEXX", "debtor BIC")
	debtorName := fs.String("debtor-name", "Nexus Test Debtor", "debtor name")
	fs.Parse(args)

	init := samplePaymentInitiation()
	raw, err := iso20022.BuildPain001(init, *debtorName, *debtorIBAN, *debtorBIC, shared.EbicsDialect(*dialect), time.Now().UTC())
	if err != nil {
		fmt.Printf("failed to build pain.001: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(raw)
}

// runParseCamt parses a camt document from disk and prints the
// extracted entries as JSON, for inspecting a bank's response offline.
func runParseCamt(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: nexusd parse-camt <file>")
		os.Exit(1)
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Printf("failed to read %s: %v\n", args[0], err)
		os.Exit(1)
	}
	stmt, err := iso20022.ParseCamt(raw)
	if err != nil {
		fmt.Printf("failed to parse camt document: %v\n", err)
		os.Exit(1)
	}
	out, err := json.MarshalIndent(stmt, "", "  ")
	if err != nil {
		fmt.Printf("failed to marshal parsed statement: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func samplePaymentInitiation() *paymentinitiation.Initiation {
	now := time.Now().UTC()
	init, err := paymentinitiation.New(
		uuid.New(), "DE00000000000000000001", "TESTDEXX", "Sample Creditor",
		"10.00", "EUR", "gen-pain sample", "",
		"gen-pain-e2e", "gen-pain-msg", "gen-pain-pmtinf", now,
	)
	if err != nil {
		panic(err)
	}
	return init
}
