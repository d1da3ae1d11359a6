package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/campusfind/apiserver/config"
	"github.com/campusfind/apiserver/internal/mq"
	"github.com/campusfind/apiserver/internal/notify"
	"github.com/spf13/cobra"
)

// workerCmd represents the notification worker command.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the claim-notification delivery worker",
	Long: `Consumes queued claim notifications and emails them to the original
reporters. Runs separately from the API server so notification delivery can
never slow down or fail a claim.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		queue, err := mq.NewFromConfig(cmd.Context(), cfg.MQ)
		if err != nil {
			return fmt.Errorf("connect to queue: %w", err)
		}
		defer func() {
			_ = queue.Close()
		}()

		worker := notify.NewWorker(queue, notify.NewSMTPMailer(cfg.SMTP), logger)
		logger.Info("claim-notification worker started", "channel", notify.Channel)
		return worker.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
