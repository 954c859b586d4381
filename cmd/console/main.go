// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/tilt_monitor/internal/app"
	"github.com/relabs-tech/tilt_monitor/internal/config"
)

func main() {
	log.Println("starting tilt-monitor console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("tilt_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
