package commands

import (
	"context"
	"fmt"
	"os"

	"gedusentinel/lib/configutil"
	"gedusentinel/lib/serviceutil"
	"gedusentinel/services/monitor/report"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sentinel-cli",
	Short: "sentinel-cli pokes the portal scraper and the report sink by hand.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	Portal struct {
		BaseUrl  string `json:"base_url"`
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"portal"`
	Monitor struct {
		DayRange int `json:"day_range"`
	} `json:"monitor"`
	Report struct {
		Smtp       report.SmtpConfig `json:"smtp"`
		SenderName string            `json:"sender_name"`
		To         []string          `json:"to"`
		Cc         []string          `json:"cc"`
	} `json:"report"`
}

func loadConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg
}
