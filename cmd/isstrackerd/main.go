// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/filbot/iss-tracker/internal/app"
	"github.com/filbot/iss-tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "./iss_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting iss-tracker display daemon")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
