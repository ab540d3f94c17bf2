// Relay consumes sync outcomes from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, SYNC_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"guild-sync/backend/internal/config"
	"guild-sync/backend/internal/telemetry/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireRelay(); err != nil {
		log.Fatalf("relay: %v", err)
	}

	reader := relay.NewReader(cfg.KafkaBrokersList(), cfg.SyncKafkaTopic, cfg.KafkaGroupID)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("relay: consuming from %s (group %s), pushing to %s", cfg.SyncKafkaTopic, cfg.KafkaGroupID, cfg.LokiURL)
	if err := relay.Run(ctx, reader, cfg.LokiURL); err != nil {
		log.Fatalf("relay: %v", err)
	}
	log.Println("relay: stopped")
}
