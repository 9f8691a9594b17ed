package main

import (
	"github.com/relabs-tech/env_station/internal/app"
	"github.com/relabs-tech/env_station/internal/cli"
)

func main() {
	cli.Execute(cli.NewRoot("gps_monitor", "Parse the GPS receiver and report position changes", app.RunGPSMonitor))
}
