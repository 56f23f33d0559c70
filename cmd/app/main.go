package main

import (
	"flag"
	"log"
	"os"

	"GreyPulse/internal/di"
	"GreyPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s sources=%d instruments=%d", cfg.Environment, len(cfg.Sources), len(cfg.Instruments))

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("clickhouse: connected and schema ready - db: %s", cfg.ClickHouse.Database)
	log.Printf("kafka: brokers=%v readings=%s alerts=%s control=%s",
		cfg.Kafka.Brokers, cfg.Kafka.ReadingsTopic, cfg.Kafka.AlertsTopic, cfg.Kafka.ControlTopic)

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
