package cli

import (
	"context"
	"fmt"
	"os"

	"paylink/config"
	"paylink/database"
	"paylink/events"
	"paylink/services"
	"paylink/utils"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "paylink",
	Short: "Payment-link issuance, redemption and ledger service",
	Long: `paylink issues single-use payment links, charges payers through the
configured processor and keeps an append-only ledger of the results.

Configuration is read from .env, an optional YAML file named by CONFIG_FILE
and the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(tokenCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Connect(cfg.Database, cfg.IsDevelopment())
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func newService(cfg *config.Config, db *gorm.DB, observers ...services.LedgerObserver) (*services.Service, error) {
	opts, err := services.OptionsFromConfig(cfg.Payments)
	if err != nil {
		return nil, err
	}
	return services.New(db, opts, observers...), nil
}

// ledgerObservers connects the optional Kafka publisher and receipt archive.
// The returned func releases whatever was opened.
func ledgerObservers(cfg *config.Config) ([]services.LedgerObserver, func(), error) {
	var observers []services.LedgerObserver
	closeFn := func() {}

	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		pub, err := events.Dial(brokers, cfg.Kafka.Topic, 5)
		if err != nil {
			return nil, closeFn, err
		}
		observers = append(observers, pub)
		closeFn = func() { _ = pub.Close() }
	}

	if cfg.Receipts.Bucket != "" {
		client, err := utils.NewS3Client(cfg.Receipts)
		if err != nil {
			closeFn()
			return nil, func() {}, err
		}
		observers = append(observers, utils.NewReceiptArchiver(client, cfg.Receipts.Bucket, cfg.Receipts.Prefix))
	}
	return observers, closeFn, nil
}
