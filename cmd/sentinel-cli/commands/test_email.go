package commands

import (
	"log/slog"

	"gedusentinel/lib/serviceutil"
	"gedusentinel/services/monitor/report"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(testEmailCmd)
}

var testEmailCmd = &cobra.Command{
	Use:   "test-email",
	Short: "Sends a test message through the configured SMTP sink.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		mailer := report.NewMailer(report.MailerOptions{
			Smtp:       cfg.Report.Smtp,
			SenderName: cfg.Report.SenderName,
			To:         cfg.Report.To,
			Cc:         cfg.Report.Cc,
		})
		err := mailer.SendTest(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to send test email", err)
		}
		slog.Info("test email sent", "to", cfg.Report.To)
	},
}
