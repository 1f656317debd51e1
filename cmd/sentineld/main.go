package main

import (
	"context"
	"log/slog"
	"os"

	"gedusentinel/lib/configutil"
	"gedusentinel/lib/scrapers/gedu"
	"gedusentinel/lib/serviceutil"
	"gedusentinel/lib/telemetry"
	"gedusentinel/services/monitor"
	"gedusentinel/services/monitor/report"
)

type PortalConfig struct {
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type MonitorConfig struct {
	DayRange int `json:"day_range"`
	// cron spec with a seconds field, defaults to every 30 seconds
	UpdateCron string `json:"update_cron"`
}

type ReportConfig struct {
	Smtp       report.SmtpConfig `json:"smtp"`
	SenderName string            `json:"sender_name"`
	To         []string          `json:"to"`
	Cc         []string          `json:"cc"`
}

type Config struct {
	Verbose bool          `json:"verbose"`
	Portal  PortalConfig  `json:"portal"`
	Monitor MonitorConfig `json:"monitor"`
	Report  ReportConfig  `json:"report"`
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	telemetry.InitSlog(config.Verbose)

	tel, err := telemetry.SetupFromEnv(ctx, "sentineld")
	if err == nil {
		defer tel.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)
	} else if !os.IsNotExist(err) {
		serviceutil.Fatal("failed to setup telemetry", err)
	}

	client, err := gedu.NewClient(gedu.ClientOptions{
		BaseUrl: config.Portal.BaseUrl,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize portal client", err)
	}
	mailer := report.NewMailer(report.MailerOptions{
		Smtp:       config.Report.Smtp,
		SenderName: config.Report.SenderName,
		To:         config.Report.To,
		Cc:         config.Report.Cc,
	})

	service, err := monitor.NewService(client, mailer, monitor.Options{
		Username:   config.Portal.Username,
		Password:   config.Portal.Password,
		DayRange:   config.Monitor.DayRange,
		UpdateCron: config.Monitor.UpdateCron,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize monitor", err)
	}

	slog.Info("sentinel of georgina starts :)")
	err = service.Start(ctx)
	if err != nil {
		serviceutil.Fatal("failed to start monitor", err)
	}

	select {
	case <-ctx.Done():
		service.Stop()
		slog.Info("shutting down")
	case <-service.Done():
		slog.Error("monitor reached a fatal state, nothing left to schedule")
	}
}
