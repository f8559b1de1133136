package main

import (
	"flag"
	"log"

	"github.com/evandro-godoy/wtnps-finadv/internal/di"
	"github.com/evandro-godoy/wtnps-finadv/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
