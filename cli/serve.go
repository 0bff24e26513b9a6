package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paylink/database"
	"paylink/middleware"
	"paylink/processor"
	"paylink/routes"
	"paylink/services"
	"paylink/utils"

	"github.com/spf13/cobra"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Schema migration runs automatically in development or when DB_AUTO_MIGRATE
is set; --migrate forces it.

Examples:
  paylink serve
  paylink serve --migrate`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "run schema migration before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	if serveMigrate || cfg.Database.AutoMigrate || cfg.IsDevelopment() {
		log.Println("Performing auto-migration")
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Println("Auto-migration completed successfully")
	} else {
		log.Println("Skipping auto-migration")
	}

	rc := utils.NewRedisClient(cfg.Redis)
	if rc == nil {
		log.Println("[warn] redis unavailable: rate limits and token revocation are off")
	} else {
		defer rc.Close()
	}

	observers, closeObservers, err := ledgerObservers(cfg)
	if err != nil {
		return err
	}
	defer closeObservers()

	svc, err := newService(cfg, db, observers...)
	if err != nil {
		return err
	}

	var charger processor.Charger = processor.Unavailable{}
	if cfg.Stripe.SecretKey != "" {
		charger = processor.NewStripe(cfg.Stripe.SecretKey, nil)
	} else {
		log.Println("[warn] STRIPE_SECRET_KEY is not set: checkout will fail with a processor error")
	}

	router := routes.InitRouter(routes.Deps{
		Service:       svc,
		Checkout:      services.NewCheckout(svc, charger),
		Tokens:        utils.NewTokens(cfg.JWT, rc),
		Redis:         rc,
		CronKey:       cfg.CronKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		HTTP:          cfg.HTTP,
		RateLimit:     cfg.RateLimit,
	})

	// Request ID -> Logging -> Security headers -> Max Body -> Timeout -> Recovery
	handler := middleware.Chain(router,
		middleware.RequestIDMiddleware,
		middleware.RequestLogMiddleware,
		middleware.SecurityHeaders(cfg.IsDevelopment()),
		middleware.MaxBody(cfg.HTTP.MaxBodyBytes),
		middleware.Timeout(cfg.HTTP.RequestTimeout()),
		middleware.RecoveryMiddleware,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	log.Println("Server exited")
	return nil
}
