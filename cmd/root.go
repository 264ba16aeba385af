package cmd

import (
	"fmt"
	"os"

	"invoicing-backend/config"
	"invoicing-backend/database"
	"invoicing-backend/logger"
	"invoicing-backend/mailer"
	"invoicing-backend/payments"
	"invoicing-backend/services"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "invoicing",
	Short: "Invoicing backend - API server and scheduled jobs",
	Long: `Invoicing backend serves the invoicing HTTP API and runs the
scheduled jobs (recurring invoice generation, overdue sweep).

Configuration comes from configs/config.yaml, .env and the environment.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, recurringCmd, sweepCmd)
}

// bootstrap loads config, sets up logging and connects the database.
func bootstrap() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Setup(logger.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}); err != nil {
		return nil, fmt.Errorf("logger setup: %w", err)
	}
	if err := database.Connect(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type serviceSet struct {
	invoices  *services.InvoiceService
	payments  *services.PaymentService
	recurring *services.RecurringService
	provider  payments.Provider
}

func newServices(cfg *config.Config) (*serviceSet, error) {
	var provider payments.Provider
	if payments.Enabled(cfg) {
		p, err := payments.New(cfg)
		if err != nil {
			return nil, err
		}
		provider = p
	} else {
		log := logger.WithComponent("payments")
		log.Warn().Str("provider", cfg.Payments.Provider).
			Msg("payment processor has no credentials, online payments disabled")
	}

	inv := &services.InvoiceService{
		Mailer:        mailer.New(cfg),
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Timeout:       cfg.UpstreamTimeout(),
		Log:           logger.WithComponent("invoices"),
	}
	return &serviceSet{
		invoices: inv,
		payments: &services.PaymentService{
			Provider: provider,
			Timeout:  cfg.UpstreamTimeout(),
			Log:      logger.WithComponent("payments"),
			Invoices: inv,
		},
		recurring: &services.RecurringService{
			DB:       database.DB,
			Invoices: inv,
			Log:      logger.WithComponent("recurring"),
		},
		provider: provider,
	}, nil
}
