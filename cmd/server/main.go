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
	"github.com/koskita/backend/internal/clock"
	"github.com/koskita/backend/internal/database"
	"github.com/koskita/backend/internal/gateway"
	"github.com/koskita/backend/internal/handlers"
	mW "github.com/koskita/backend/internal/middleware"
	"github.com/koskita/backend/internal/models"
	"github.com/koskita/backend/internal/services"
	"github.com/spf13/viper"
)

// @title Koskita Booking API
// @version 1.0
// @description Multi-tenant kos booking and payment backend
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("midtrans.server_key", "MIDTRANS_SERVER_KEY")
	viper.BindEnv("midtrans.client_key", "MIDTRANS_CLIENT_KEY")
	viper.BindEnv("midtrans.is_production", "MIDTRANS_IS_PRODUCTION")
	viper.BindEnv("midtrans.expiry_minutes", "MIDTRANS_EXPIRY_MINUTES")
	viper.BindEnv("cron.secret", "CRON_SECRET")
	viper.BindEnv("booking.unpaid_grace_minutes", "BOOKING_UNPAID_GRACE_MINUTES")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("booking.unpaid_grace_minutes", 30)

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	clk := clock.NewSystem()
	midtrans := gateway.NewClient()

	ledgerService := services.NewLedgerService(db, clk)
	paymentService := services.NewPaymentService(db, midtrans, clk, ledgerService)
	webhookService := services.NewWebhookService(midtrans, paymentService, redisClient)
	bookingService := services.NewBookingService(db, clk, paymentService)
	cleanupService := services.NewCleanupService(db, clk)
	payoutService := services.NewPayoutService(db, clk, ledgerService)
	authService := services.NewAuthService(db, redisClient, clk)
	bankService := services.NewBankService()
	qrService := services.NewQRService(db, redisClient)
	qrHandler := handlers.NewQRHandler(qrService)

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
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Static file server for bank logos
	r.Handle("/static/bank-logos/*", http.StripPrefix("/static/bank-logos/",
		mW.StaticFileServer("./static/bank-logos")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/banks", bankService.GetAllBanks)

		// Gateway notifications; signature-verified, not JWT-authenticated.
		// The bookings path is the pre-consolidation URL some dashboards
		// still have configured.
		r.Post("/payments/notify", webhookService.HandleNotification)
		r.Post("/bookings/payment/webhook", webhookService.HandleNotification)

		// Scheduler endpoints guarded by the shared cron secret
		r.Group(func(r chi.Router) {
			r.Use(mW.CronAuth)
			r.Get("/cron/cleanup-expired", cleanupService.HandleCleanup)
			r.Post("/cron/ledger-backfill", ledgerService.Backfill)
		})

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)

			r.Post("/bookings", bookingService.CreateBooking)
			r.Get("/bookings", bookingService.ListBookings)
			r.Get("/bookings/{bookingId}", bookingService.GetBooking)
			r.Post("/bookings/{bookingId}/cancel", bookingService.Cancel)
			r.Post("/bookings/{bookingId}/extend", bookingService.Extend)

			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole(models.RoleAdminKos, models.RoleSuperadmin))
				r.Post("/bookings/{bookingId}/check-in", bookingService.CheckIn)
				r.Post("/bookings/{bookingId}/complete", bookingService.Complete)
			})

			r.Post("/payments", paymentService.CreatePayment)
			r.Get("/payments/status", paymentService.GetStatus)
			r.Get("/payments/refresh-status", paymentService.RefreshStatus)
			r.Post("/payments/confirm-client", paymentService.ConfirmClient)

			r.Post("/payments/qr", qrHandler.GenerateQR)
			r.Post("/payments/qr/resolve", qrHandler.ResolveQR)

			// Owner money endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole(models.RoleAdminKos, models.RoleSuperadmin))
				r.Get("/ledger/balance", ledgerService.GetBalance)
				r.Get("/ledger/entries", ledgerService.ListEntries)
				r.Post("/ledger/adjustments", ledgerService.PostAdjustment)
				r.Post("/payouts", payoutService.RequestPayout)
				r.Get("/payouts", payoutService.ListPayouts)
			})

			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole(models.RoleSuperadmin))
				r.Post("/payouts/{payoutId}/approve", payoutService.ApprovePayout)
				r.Post("/payouts/{payoutId}/reject", payoutService.RejectPayout)
				r.Post("/payouts/{payoutId}/complete", payoutService.CompletePayout)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
