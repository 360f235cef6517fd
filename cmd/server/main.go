package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/posi-ecosystem/fati-backend/docs"
	"github.com/posi-ecosystem/fati-backend/internal/audit"
	"github.com/posi-ecosystem/fati-backend/internal/config"
	"github.com/posi-ecosystem/fati-backend/internal/database"
	"github.com/posi-ecosystem/fati-backend/internal/handlers"
	mW "github.com/posi-ecosystem/fati-backend/internal/middleware"
	"github.com/posi-ecosystem/fati-backend/internal/services"
	"github.com/posi-ecosystem/fati-backend/internal/store"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title FATI Ledger API
// @version 1.0
// @description FATI balances, transfers, referrals and billing webhooks
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg := config.Load(".env")

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "FATI Ledger API"
	docs.SwaggerInfo.Description = "FATI balances, transfers, referrals and billing webhooks"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	ctx := context.Background()
	st, closeStore := openStore(ctx, cfg.Database)
	defer closeStore()

	redisClient := database.InitRedis(ctx, cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	if cfg.Stripe.WebhookSecret == "" {
		log.Println("[CONFIG] STRIPE_WEBHOOK_SECRET is not set; billing webhooks will be rejected")
	}

	// Initialize services
	auditLogger := audit.NewAuditLogger()
	ledgerService := services.NewLedgerService(st, auditLogger, cfg.Ledger)
	referralService := services.NewReferralService(st, ledgerService, cfg.App.URL)
	tokenService := services.NewTokenService(cfg.JWT, redisClient)
	accountService := services.NewAccountService(st, ledgerService, referralService, tokenService, cfg.Argon2, cfg.Ledger)
	billingService := services.NewBillingWebhookService(st, ledgerService, referralService, auditLogger, cfg.Stripe)
	transferLimiter := services.NewTransferLimiter(redisClient, cfg.Ledger)

	api := handlers.Handlers{
		Accounts:  handlers.NewAccountHandler(accountService),
		Wallet:    handlers.NewWalletHandler(ledgerService, accountService, transferLimiter),
		Referrals: handlers.NewReferralHandler(referralService),
		Webhooks:  handlers.NewWebhookHandler(billingService, cfg.Stripe.MaxWebhookBodyLen),
		Catalog:   handlers.NewCatalogHandler(cfg.Stripe),
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "Stripe-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", healthHandler(st, redisClient))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		api.Mount(r, mW.Auth(tokenService))
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, func()) {
	if cfg.Driver == "memory" {
		log.Println("[DATABASE] Using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), func() {}
	}

	db, err := database.InitDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}
	return store.NewPostgresStore(db), func() { db.Close() }
}

func healthHandler(st store.Store, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "healthy", "database": "up", "redis": "disabled"}
		code := http.StatusOK

		if err := st.Ping(ctx); err != nil {
			log.Printf("[HEALTH] Database ping failed: %v", err)
			status["status"] = "degraded"
			status["database"] = "down"
			code = http.StatusServiceUnavailable
		}
		if redisClient != nil {
			status["redis"] = "up"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				status["redis"] = "down"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	}
}
