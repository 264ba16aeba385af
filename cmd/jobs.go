package cmd

import (
	"encoding/json"
	"os"
	"time"

	"invoicing-backend/cache"
	"invoicing-backend/database"
	"invoicing-backend/logger"
	"invoicing-backend/services"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply idempotent schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := bootstrap(); err != nil {
			return err
		}
		if err := database.Migrate(database.DB); err != nil {
			return err
		}
		log := logger.WithComponent("migrate")
		log.Info().Msg("schema up to date")
		return nil
	},
}

var recurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Generate invoices for every due recurring template",
	Long: `Runs one recurring generation pass, the same work POST /api/cron/recurring does.
Safe to run more than once a day: templates already generated today are skipped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		log := logger.WithComponent("recurring")
		if err := cache.Init(cfg); err != nil {
			log.Warn().Err(err).Msg("redis unavailable")
		}
		defer cache.Close()

		svc, err := newServices(cfg)
		if err != nil {
			return err
		}
		res, err := svc.recurring.ProcessDue(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().
			Int("examined", res.Examined).
			Int("created", res.Created).
			Int("emails_sent", res.EmailsSent).
			Int("errors", len(res.Errors)).
			Msg("recurring run finished")
		return printJSON(res)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep-overdue",
	Short: "Persist the overdue status of invoices past their due date",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := bootstrap(); err != nil {
			return err
		}
		res, err := services.SweepOverdue(cmd.Context(), database.DB, time.Now())
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
