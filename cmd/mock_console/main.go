package main

import (
	"log"

	"github.com/relabs-tech/tilt_monitor/internal/app"
)

func main() {
	log.Println("starting tilt-monitor (mock console)")

	if err := app.RunMockConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
