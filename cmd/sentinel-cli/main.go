package main

import (
	"gedusentinel/cmd/sentinel-cli/commands"
	"gedusentinel/lib/serviceutil"
	"gedusentinel/lib/telemetry"
)

func main() {
	telemetry.InitSlog(true)
	commands.ExecuteContext(serviceutil.SignalContext())
}
