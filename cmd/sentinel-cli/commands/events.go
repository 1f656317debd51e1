package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"gedusentinel/lib/scrapers/gedu"
	"gedusentinel/lib/serviceutil"
	"gedusentinel/lib/timezone"
	"gedusentinel/services/monitor"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var eventsWindowOnly *bool

func init() {
	eventsWindowOnly = eventsCmd.Flags().Bool("window", false, "restrict the output to the monitored day range")
	rootCmd.AddCommand(eventsCmd)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

var eventsCmd = &cobra.Command{
	Use:   "events [--window]",
	Short: "Logs into the portal and prints the current schedule snapshot.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute*2)
		defer cancel()

		client, err := gedu.NewClient(gedu.ClientOptions{
			BaseUrl: cfg.Portal.BaseUrl,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize portal client", err)
		}
		err = client.Login(ctx, cfg.Portal.Username, cfg.Portal.Password)
		if err != nil {
			serviceutil.Fatal("failed to login to the portal", err)
		}

		events, err := client.FetchEvents(ctx, timezone.Now())
		if err != nil {
			serviceutil.Fatal("failed to fetch events", err)
		}
		if *eventsWindowOnly {
			events = monitor.RecentWindow(events, timezone.Now(), cfg.Monitor.DayRange)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Start", "End", "Title", "Location", "Time"})
		for _, e := range events {
			t.AppendRow(table.Row{
				e.Start.Format("2006-01-02 15:04"),
				e.End.Format("2006-01-02 15:04"),
				e.Title,
				e.Location,
				e.TimeLabel,
			})
		}
		t.Render()

		slog.Info("fetched events", "count", len(events), "total_hours", monitor.CalcHours(events))
	},
}
