package main

import (
	"context"
	"log"
	"time"

	"github.com/fleetdata/blobsink/pkg/config"
	"github.com/fleetdata/blobsink/pkg/faker"
	"github.com/fleetdata/blobsink/pkg/kafka"
)

const publishInterval = 200 * time.Millisecond

func main() {
	cfg := config.Load("config.yaml")
	ctx := context.Background() // or a cancellable / timeout context

	tenants := make([]string, 0, len(cfg.Tenants))
	for _, t := range cfg.Tenants {
		tenants = append(tenants, t.ID)
	}
	if len(tenants) == 0 {
		log.Fatal("[Seed] No tenants configured")
	}

	producer := kafka.NewProducer(ctx, cfg.Kafka)
	defer producer.Close()

	log.Printf("[Seed] Publishing synthetic telemetry to %s...", cfg.Kafka.Topic)
	for {
		faker.PublishHeartbeat(producer, cfg.Kafka.Topic, tenants)
		time.Sleep(publishInterval)
	}
}
