package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetdata/blobsink/pkg/config"
	"github.com/fleetdata/blobsink/pkg/kafka"
	"github.com/fleetdata/blobsink/pkg/metrics"
	"github.com/fleetdata/blobsink/pkg/state"
	"github.com/fleetdata/blobsink/pkg/telemetry"
	"github.com/fleetdata/blobsink/pkg/writer"
)

const (
	commitBatchSize  = 100              // Commit after this many messages
	commitInterval   = 5 * time.Second  // Or after this much time
	statsLogInterval = 15 * time.Second // Consumer stats logging cadence
)

func main() {
	log.Println("[Sink] Starting telemetry blob sink...")

	cfg := config.Load("config.yaml")

	offsets, err := state.Open(cfg.State.Path)
	if err != nil {
		log.Fatalf("[Sink] Failed to open offset store: %v", err)
	}
	defer offsets.Close()

	if stats, statsErr := offsets.StatsByTopic(); statsErr == nil {
		for topic, count := range stats {
			log.Printf("[State] Topic: %s | Tracked partitions: %d", topic, count)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := writer.NewRegistry(cfg.Writer)
	if initErr := registry.Initialize(ctx, cfg.Tenants); initErr != nil {
		// Failed tenants are already excluded; the rest keep running.
		log.Printf("[Sink] Some tenant writers unavailable: %v", initErr)
	}
	registry.StartAll()

	if cfg.Metrics.Port > 0 {
		metrics.StartMetricsServer(cfg.Metrics.Port)
	}

	go runConsumer(ctx, cfg, offsets, registry)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("[Sink] Received %v, shutting down", sig)

	cancel()
	if stopErr := registry.StopAll(); stopErr != nil {
		log.Printf("[Sink] Shutdown completed with stop failures: %v", stopErr)
		os.Exit(1)
	}
	log.Println("[Sink] Shutdown complete")
}

// runConsumer reads the inbound topic and dispatches each record to its
// tenant's writer, committing offsets in batches.
func runConsumer(ctx context.Context, cfg config.AppConfig, offsets *state.OffsetStore, registry *writer.Registry) {
	reader := kafka.NewConsumer(ctx, cfg.Kafka, offsets)
	defer reader.Close()

	lastLog := time.Now()
	lastCommit := time.Now()
	var batch []*kafka.DecodedMessage

	for {
		if ctx.Err() != nil {
			return
		}

		if time.Since(lastLog) >= statsLogInterval {
			reader.LogStats()
			lastLog = time.Now()
		}

		msg, err := reader.Read()
		if err != nil {
			log.Printf("[Kafka] Read error on topic %s: %v", cfg.Kafka.Topic, err)
			continue
		}
		if msg == nil {
			continue
		}
		metrics.MessagesConsumed.Inc()

		dispatch(registry, msg.Record)

		batch = append(batch, msg)
		if len(batch) >= commitBatchSize || time.Since(lastCommit) > commitInterval {
			if err := reader.CommitBatch(batch); err != nil {
				log.Printf("[Kafka] commit batch error: %v", err)
			}
			batch = batch[:0]
			lastCommit = time.Now()
		}
	}
}

// dispatch resolves the record's tenant and enqueues it. Records without a
// usable tenant id and records for unregistered tenants are dropped here;
// they can never reach a buffer.
func dispatch(registry *writer.Registry, rec telemetry.Record) {
	tenantID, ok := rec["tenant_id"].(string)
	if !ok || tenantID == "" {
		log.Printf("[Sink] Dropping record without tenant_id")
		metrics.MalformedRecords.Inc()
		return
	}

	if err := registry.Dispatch(tenantID, rec); err != nil {
		log.Printf("[Sink] Dispatch failed: %v", err)
		metrics.UnknownTenants.Inc()
	}
}
