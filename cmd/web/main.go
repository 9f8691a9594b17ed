// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"github.com/relabs-tech/env_station/internal/app"
	"github.com/relabs-tech/env_station/internal/cli"
)

func main() {
	cli.Execute(cli.NewRoot("web", "Serve the latest station telemetry over HTTP and websocket", app.RunWeb))
}
