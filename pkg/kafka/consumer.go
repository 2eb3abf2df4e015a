package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
	jsoniter "github.com/json-iterator/go"

	"github.com/fleetdata/blobsink/pkg/config"
	"github.com/fleetdata/blobsink/pkg/state"
	"github.com/fleetdata/blobsink/pkg/telemetry"
)

const maxInt32 = 0x7FFFFFFF // Maximum value for signed 32-bit integer

var json = jsoniter.ConfigFastest

// Consumer reads telemetry messages from the inbound topic. Decoded payload
// maps are handed off to tenant writers that buffer them across commits, so
// no pooling happens here; each message owns its map.
type Consumer struct {
	ctx     context.Context
	c       *ck.Consumer
	topic   string
	offsets *state.OffsetStore
}

// DecodedMessage is one consumed, JSON-decoded telemetry message.
type DecodedMessage struct {
	Key       []byte
	Record    telemetry.Record
	Topic     string
	Time      time.Time
	Offset    int64
	Partition int
}

// NewConsumer panics on unrecoverable config errors; a sink without its
// source cannot run.
func NewConsumer(ctx context.Context, cfg config.KafkaConfig, offsets *state.OffsetStore) *Consumer {
	cm := &ck.ConfigMap{
		"bootstrap.servers":               strings.Join(cfg.Brokers, ","),
		"group.id":                        cfg.GroupID,
		"enable.auto.commit":              false,
		"auto.offset.reset":               "earliest",
		"go.application.rebalance.enable": true,
	}
	c, err := ck.NewConsumer(cm)
	if err != nil {
		log.Fatalf("failed to create confluent consumer: %v", err)
	}

	cons := &Consumer{
		ctx:     ctx,
		c:       c,
		topic:   cfg.Topic,
		offsets: offsets,
	}

	// Subscribe with onRebalance callback to set initial offsets from the
	// local store.
	err = c.SubscribeTopics([]string{cfg.Topic}, func(con *ck.Consumer, ev ck.Event) error {
		switch e := ev.(type) {
		case ck.AssignedPartitions:
			parts := e.Partitions
			for i := range parts {
				off, offsetErr := offsets.GetOffset(cfg.Topic, int(parts[i].Partition))
				if offsetErr != nil {
					log.Printf("[Kafka] No stored offset for topic: %s partition: %d", cfg.Topic, int(parts[i].Partition))
					parts[i].Offset = ck.OffsetBeginning
				} else {
					log.Printf("[Kafka] Resuming topic: %s partition: %d offset: %d", cfg.Topic, int(parts[i].Partition), off)
					parts[i].Offset = ck.Offset(off + 1)
				}
			}
			return con.Assign(parts)
		case ck.RevokedPartitions:
			return con.Unassign()
		default:
			return nil
		}
	})
	if err != nil {
		log.Fatalf("subscribe failed: %v", err)
	}

	return cons
}

// Read blocks for the next message and decodes its JSON payload. A nil
// message with nil error means a timeout the caller can skip.
func (c *Consumer) Read() (*DecodedMessage, error) {
	msg, err := c.c.ReadMessage(-1)
	if err != nil {
		var ke ck.Error
		if errors.As(err, &ke) && ke.Code() == ck.ErrTimedOut {
			return nil, nil
		}
		return nil, err
	}

	rec := make(telemetry.Record)
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		return nil, fmt.Errorf("decode message at %s[%d]@%d: %w",
			*msg.TopicPartition.Topic, msg.TopicPartition.Partition, msg.TopicPartition.Offset, err)
	}

	return &DecodedMessage{
		Key:       msg.Key,
		Record:    rec,
		Topic:     *msg.TopicPartition.Topic,
		Time:      msg.Timestamp,
		Offset:    int64(msg.TopicPartition.Offset),
		Partition: int(msg.TopicPartition.Partition),
	}, nil
}

// CommitBatch commits a group of messages in one RPC and mirrors the
// committed offsets into the local store for rebalance recovery.
func (c *Consumer) CommitBatch(dms []*DecodedMessage) error {
	// determine highest offset+1 per partition
	byPart := make(map[int]int64)
	for _, dm := range dms {
		next := dm.Offset + 1
		if curr, ok := byPart[dm.Partition]; !ok || next > curr {
			byPart[dm.Partition] = next
		}
	}

	tps := make([]ck.TopicPartition, 0, len(byPart))
	for p, off := range byPart {
		if p > maxInt32 { // Ensure partition fits in int32
			return fmt.Errorf("partition %d exceeds int32 limit", p)
		}
		tps = append(tps, ck.TopicPartition{
			Topic:     &c.topic,
			Partition: int32(p), //nolint:gosec // Bounded by int32 max check above
			Offset:    ck.Offset(off),
		})
	}

	if _, err := c.c.CommitOffsets(tps); err != nil {
		return fmt.Errorf("commit batch failed: %w", err)
	}

	for p, off := range byPart {
		if err := c.offsets.SaveOffset(c.topic, p, off-1); err != nil {
			log.Printf("[Kafka] save offset %s/%d failed: %v", c.topic, p, err)
		}
	}
	return nil
}

func (c *Consumer) Close() error { return c.c.Close() }

func (c *Consumer) LogStats() {
	if s := c.c.String(); s != "" {
		log.Printf("[Confluent] %s", s)
	}
}
