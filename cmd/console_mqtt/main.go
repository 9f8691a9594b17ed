package main

import (
	"github.com/relabs-tech/env_station/internal/app"
	"github.com/relabs-tech/env_station/internal/cli"
)

func main() {
	cli.Execute(cli.NewRoot("console_mqtt", "Print station telemetry received over MQTT", app.RunConsoleMQTT))
}
