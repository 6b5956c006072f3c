// Command server runs the bloodlink coordination API: donor and bank
// registries, donation logging, inventory, urgent requests with
// allocation, email verification, and reporting.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bloodlink/internal/admintoken"
	"bloodlink/internal/allocation"
	allocmetrics "bloodlink/internal/allocation/metrics"
	"bloodlink/internal/audit"
	"bloodlink/internal/bank"
	bankhandler "bloodlink/internal/bank/handler"
	bankstore "bloodlink/internal/bank/store"
	"bloodlink/internal/donation"
	donationhandler "bloodlink/internal/donation/handler"
	donationstore "bloodlink/internal/donation/store"
	"bloodlink/internal/donor"
	donorhandler "bloodlink/internal/donor/handler"
	donorstore "bloodlink/internal/donor/store"
	"bloodlink/internal/gate"
	gatehandler "bloodlink/internal/gate/handler"
	gatemetrics "bloodlink/internal/gate/metrics"
	gatestore "bloodlink/internal/gate/store"
	httpapi "bloodlink/internal/http"
	inventoryhandler "bloodlink/internal/inventory/handler"
	invmodels "bloodlink/internal/inventory/models"
	inventorystore "bloodlink/internal/inventory/store"
	"bloodlink/internal/notify"
	"bloodlink/internal/platform/config"
	"bloodlink/internal/platform/httpserver"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/platform/postgres"
	"bloodlink/internal/platform/redis"
	"bloodlink/internal/report"
	reporthandler "bloodlink/internal/report/handler"
	"bloodlink/internal/request"
	requesthandler "bloodlink/internal/request/handler"
	requeststore "bloodlink/internal/request/store"
	"bloodlink/migrations"
	"bloodlink/pkg/domain"
)

const auditBuffer = 256

// inventoryStore is the union of the inventory methods the features
// consume; both store implementations satisfy it.
type inventoryStore interface {
	donation.InventoryAdder
	bank.InventorySweeper
	inventoryhandler.Lister
	report.InventoryReader
	DecrementIfAvailable(ctx context.Context, bankID domain.BankID, group domain.BloodGroup, units int) error
	FindSufficient(ctx context.Context, group domain.BloodGroup, units int) ([]invmodels.Record, error)
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err.Error())
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := migrations.Apply(ctx, db); err != nil {
			log.Error("migrations failed", "error", err.Error())
			os.Exit(1)
		}
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Stores: postgres when configured, in-memory twins otherwise.
	var (
		donors     donor.Store
		banks      bank.Store
		inventory  inventoryStore
		donations  donation.Store
		requests   request.Store
		auditStore audit.Store
	)
	if db != nil {
		donors = donorstore.NewPostgres(db)
		banks = bankstore.NewPostgres(db)
		inventory = inventorystore.NewPostgres(db)
		donations = donationstore.NewPostgres(db)
		requests = requeststore.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
	} else {
		log.Warn("postgres not configured, using in-memory stores")
		donors = donorstore.NewMemory()
		banks = bankstore.NewMemory()
		inventory = inventorystore.NewMemory()
		donations = donationstore.NewMemory()
		requests = requeststore.NewMemory()
		auditStore = audit.NewMemoryStore()
	}

	var gateStore gate.Store
	if redisClient != nil {
		gateStore = gatestore.NewRedis(redisClient.Client)
	} else {
		log.Warn("redis not configured, verification codes held in memory")
		gateStore = gatestore.NewMemory()
	}

	var sender notify.Sender
	if cfg.SMTP.Host != "" {
		sender = notify.NewSMTPSender(cfg.SMTP)
	} else {
		log.Warn("smtp not configured, verification codes logged instead of mailed")
		sender = notify.NewLogSender(log)
	}

	appMetrics := metrics.New()
	auditPublisher := audit.NewPublisher(auditBuffer, log)
	auditWorker := audit.NewWorker(auditStore, auditPublisher.Inbox(), log)

	gateService := gate.NewService(gateStore, sender, log, cfg.ChallengeTTL,
		gate.WithMetrics(gatemetrics.New()))
	donorService := donor.NewService(donors, gateService, log,
		donor.WithAuditPublisher(auditPublisher),
		donor.WithMetrics(appMetrics))
	bankService := bank.NewService(banks, inventory, log,
		bank.WithAuditPublisher(auditPublisher))
	donationService := donation.NewService(donations, donors, banks, inventory, log,
		donation.WithAuditPublisher(auditPublisher),
		donation.WithMetrics(appMetrics))
	requestService := request.NewService(requests, gateService, log,
		request.WithAuditPublisher(auditPublisher),
		request.WithMetrics(appMetrics))
	engine := allocation.NewEngine(requests, inventory, banks, donors, log,
		allocation.WithAuditPublisher(auditPublisher),
		allocation.WithMetrics(allocmetrics.New()))
	reportService := report.NewService(donors, banks, inventory, donations, requests,
		log, cfg.LowStockThreshold, cfg.InactiveDonorAfter)

	tokens := admintoken.NewService(cfg.AdminSigningKey, "bloodlink")
	admin := middleware.RequireAdmin(tokens, log)
	optionalAdmin := middleware.OptionalAdmin(tokens, log)

	router := httpapi.NewRouter(log,
		gatehandler.New(gateService, log),
		donorhandler.New(donorService, log, admin),
		bankhandler.New(bankService, log, admin),
		donationhandler.New(donationService, log, admin),
		inventoryhandler.New(inventory, log),
		requesthandler.New(requestService, engine, log, optionalAdmin),
		reporthandler.New(reportService, log),
	)

	apiServer := httpserver.New(cfg.Addr, router)
	metricsServer := httpserver.New(cfg.MetricsAddr, metrics.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api server listening", "addr", cfg.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := auditWorker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Error("api server shutdown failed", "error", err.Error())
		}
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}
