package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/ledgerflowhq/ledgerflow/api"
	"github.com/ledgerflowhq/ledgerflow/config"
	"github.com/ledgerflowhq/ledgerflow/credentials"
	"github.com/ledgerflowhq/ledgerflow/db"
	"github.com/ledgerflowhq/ledgerflow/extraction"
	"github.com/ledgerflowhq/ledgerflow/ledger"
	"github.com/ledgerflowhq/ledgerflow/middleware"
	"github.com/ledgerflowhq/ledgerflow/notify"
	"github.com/ledgerflowhq/ledgerflow/ratelimit"
	"github.com/ledgerflowhq/ledgerflow/secrets"
	"github.com/ledgerflowhq/ledgerflow/services"
	"github.com/ledgerflowhq/ledgerflow/storage"
	"github.com/ledgerflowhq/ledgerflow/stores"
	"github.com/ledgerflowhq/ledgerflow/utils"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration validation failed: %v\n", err)
		os.Exit(1)
	}
	utils.Info(ctx, "configuration loaded", map[string]interface{}{"environment": cfg.Environment})

	conn, err := db.Open(db.Config{
		DSN:          cfg.Database.DSN(),
		ReplicaDSNs:  cfg.Database.ReplicaDSNs,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxLifetime:  cfg.Database.MaxLifetime,
		MaxIdleTime:  cfg.Database.MaxIdleTime,
		LogQueries:   cfg.Database.LogQueries,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	if err := db.Migrate(conn); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate schema: %v\n", err)
		os.Exit(1)
	}
	utils.Info(ctx, "connected to database", map[string]interface{}{
		"host": cfg.Database.Host, "port": cfg.Database.Port,
	})

	secretStore, err := secrets.NewRedisStore(secrets.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to redis: %v\n", err)
		os.Exit(1)
	}
	utils.Info(ctx, "connected to redis", map[string]interface{}{"addr": cfg.Redis.Addr()})

	objectStore, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize object storage: %v\n", err)
		os.Exit(1)
	}

	var mailer notify.Mailer = notify.NopMailer{}
	if cfg.Email.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.FromAddress,
		})
	}

	tenantStore := stores.NewTenantStore(conn)
	receiptStore := stores.NewReceiptStore(conn)
	integrationStore := stores.NewIntegrationStore(conn)
	auditStore := stores.NewAuditStore(conn)
	mappingStore := stores.NewEmailMappingStore(conn)

	analyzer := extraction.NewClient(extraction.ClientConfig{
		Endpoint: cfg.Extractor.Endpoint,
		APIKey:   cfg.Extractor.APIKey,
		Model:    cfg.Extractor.Model,
		Timeout:  cfg.Extractor.Timeout,
	})

	pacer := ratelimit.NewLimiter()
	ledgerClient := ledger.NewClient(ledger.ClientConfig{
		BaseURL: cfg.Ledger.BaseURL,
		Timeout: cfg.Ledger.Timeout,
	}, pacer)

	tokenManager := credentials.NewManager(credentials.ManagerConfig{
		TokenURL: cfg.Ledger.TokenURL,
	}, secretStore)

	syncService := services.NewSyncService(integrationStore, tokenManager, ledgerClient)
	ingestionService := services.NewIngestionService(tenantStore, receiptStore, objectStore, analyzer, syncService)
	tenantService := services.NewTenantService(tenantStore, mappingStore, auditStore, objectStore, cfg.Email.Domain)
	auditService := services.NewAuditService(auditStore)
	emailService := services.NewEmailIngestService(
		mappingStore, tenantStore, objectStore, ingestionService,
		services.NewRedisDeduper(secretStore.Client()), mailer)

	reconciler := services.NewReconciliationSweeper(tenantStore, objectStore, ingestionService)
	autoPayer := services.NewAutoPaySweeper(tenantStore, integrationStore, tokenManager, ledgerClient, auditStore)

	receiptHandler := api.CreateReceiptHandler(receiptStore, ingestionService, objectStore)
	tenantHandler := api.CreateTenantHandler(tenantService)
	integrationHandler := api.CreateIntegrationHandler(integrationStore, auditStore, secretStore)
	auditHandler := api.CreateAuditHandler(auditService)
	emailHandler := api.CreateEmailWebhookHandler(emailService, cfg.Server.WebhookToken)

	router := mux.NewRouter()
	router.Use(middleware.RecoveryMiddleware)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.RateLimitMiddleware)

	router.HandleFunc("/health", api.HealthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", api.MetricsHandler).Methods("GET")
	router.HandleFunc("/webhook/email", emailHandler.HandleInbound).Methods("POST")
	router.HandleFunc("/api/tenants", tenantHandler.HandleCreate).Methods("POST")

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.APIKeyAuth(tenantStore))

	apiRouter.HandleFunc("/tenants/{id}", tenantHandler.HandleGet).Methods("GET")
	apiRouter.HandleFunc("/tenants/{id}/settings", tenantHandler.HandleUpdateSettings).Methods("PUT")
	apiRouter.HandleFunc("/tenants/{id}/email-domain", tenantHandler.HandleConfigureEmail).Methods("POST")
	apiRouter.HandleFunc("/tenants/{id}/integration", integrationHandler.HandleConnect).Methods("POST")
	apiRouter.HandleFunc("/tenants/{id}/integration", integrationHandler.HandleGet).Methods("GET")
	apiRouter.HandleFunc("/tenants/{id}/integration", integrationHandler.HandleDisconnect).Methods("DELETE")
	apiRouter.HandleFunc("/tenants/{id}/uploads", receiptHandler.HandleUpload).Methods("POST")
	apiRouter.HandleFunc("/tenants/{id}/receipts", receiptHandler.HandleList).Methods("GET")
	apiRouter.HandleFunc("/tenants/{id}/receipts/{receiptID}", receiptHandler.HandleGet).Methods("GET")
	apiRouter.HandleFunc("/tenants/{id}/processing/status", receiptHandler.HandleStatus).Methods("GET")
	apiRouter.HandleFunc("/audit", auditHandler.HandleList).Methods("GET")

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweepCtx, stopSweeps := context.WithCancel(ctx)
	go runTicker(sweepCtx, cfg.Sweep.ReconcileInterval, reconciler.Run)
	go runTicker(sweepCtx, cfg.Sweep.AutoPayInterval, autoPayer.Run)

	go func() {
		utils.Info(ctx, "server listening", map[string]interface{}{"port": cfg.Server.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Info(ctx, "shutting down", nil)
	stopSweeps()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "forced shutdown: %v\n", err)
	}
	utils.Info(ctx, "shutdown complete", nil)
}

// runTicker invokes fn on the given interval until the context is cancelled.
// Sweeps do not run at startup; the first run happens one interval in.
func runTicker(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
