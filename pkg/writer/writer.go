// Package writer implements the per-tenant buffered append-log writer and
// the registry that routes inbound records to it.
package writer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fleetdata/blobsink/pkg/config"
	"github.com/fleetdata/blobsink/pkg/metrics"
	"github.com/fleetdata/blobsink/pkg/storage"
	"github.com/fleetdata/blobsink/pkg/telemetry"
)

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopping
	stateStopped
)

// Writer buffers one tenant's records in memory and periodically drains
// them to the tenant's storage backend, partitioned by (type, date, hour).
//
// Enqueue may be called from any number of goroutines. The buffer mutex is
// held only for the O(1) append and the O(1) swap during drain, never
// across storage calls, so producers are never blocked by storage latency.
type Writer struct {
	tenantID string
	backend  storage.Backend

	flushInterval  time.Duration
	initialDelay   time.Duration
	maxAppendBytes int

	mu     sync.Mutex
	buffer []telemetry.Record

	lifecycle sync.Mutex
	st        state
	stopCh    chan struct{}
	done      chan struct{}
}

// New builds an idle writer. Start launches its flush loop.
func New(tenantID string, backend storage.Backend, cfg config.WriterConfig) *Writer {
	return &Writer{
		tenantID:       tenantID,
		backend:        backend,
		flushInterval:  cfg.FlushInterval,
		initialDelay:   cfg.InitialDelay,
		maxAppendBytes: cfg.MaxAppendBytes,
	}
}

func (w *Writer) TenantID() string { return w.tenantID }

// Enqueue appends a record to the buffer. It never blocks on I/O.
func (w *Writer) Enqueue(rec telemetry.Record) {
	w.mu.Lock()
	w.buffer = append(w.buffer, rec)
	depth := len(w.buffer)
	w.mu.Unlock()

	metrics.BufferDepth.WithLabelValues(w.tenantID).Set(float64(depth))
}

// Len reports the current buffer depth.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

// drain swaps the buffer with an empty one and returns the snapshot.
// Records enqueued before the swap land in this snapshot; records enqueued
// concurrently land in the next one.
func (w *Writer) drain() []telemetry.Record {
	w.mu.Lock()
	snapshot := w.buffer
	w.buffer = nil
	w.mu.Unlock()

	metrics.BufferDepth.WithLabelValues(w.tenantID).Set(0)
	return snapshot
}

// Start transitions the writer to running and launches the flush loop:
// first flush after the initial delay, then one every flush interval.
func (w *Writer) Start() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.st != stateIdle {
		return
	}
	w.st = stateRunning
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	go w.run()
}

func (w *Writer) run() {
	defer close(w.done)

	select {
	case <-time.After(w.initialDelay):
	case <-w.stopCh:
		return
	}
	w.flushAndLog()

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.flushAndLog()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Writer) flushAndLog() {
	if err := w.Flush(context.Background()); err != nil {
		log.Printf("[Writer] tenant=%s flush errors: %v", w.tenantID, err)
	}
}

// Flush drains the buffer and writes the snapshot out, one append target
// per partition key in first-seen order. Malformed records are dropped with
// a warning; a failed packet is logged and its siblings still attempted.
// The returned error aggregates every failure of the cycle.
func (w *Writer) Flush(ctx context.Context) error {
	snapshot := w.drain()
	if len(snapshot) == 0 {
		return nil
	}

	groups, malformed := telemetry.Partition(snapshot)
	for _, rec := range malformed {
		_, err := telemetry.KeyOf(rec)
		log.Printf("[Writer] tenant=%s dropping record: %v", w.tenantID, err)
		metrics.MalformedRecords.Inc()
	}

	var errs []error
	for _, group := range groups {
		if err := w.writeGroup(ctx, group); err != nil {
			errs = append(errs, err)
		}
	}

	metrics.FlushesTotal.WithLabelValues(w.tenantID).Inc()
	return errors.Join(errs...)
}

// writeGroup ensures the group's target exists and appends the group in
// byte-bounded packets.
func (w *Writer) writeGroup(ctx context.Context, group telemetry.Group) error {
	name := group.Key.TargetName()

	exists, err := w.backend.Exists(ctx, name)
	if err != nil {
		metrics.AppendFailures.Inc()
		return fmt.Errorf("check target %s: %w", name, err)
	}
	if !exists {
		log.Printf("[Writer] tenant=%s creating target %s", w.tenantID, name)
		if err := w.backend.Create(ctx, name); err != nil {
			metrics.AppendFailures.Inc()
			return fmt.Errorf("create target %s: %w", name, err)
		}
	}

	packets, err := telemetry.Packetize(group.Records, w.maxAppendBytes)
	if err != nil {
		return fmt.Errorf("packetize for %s: %w", name, err)
	}

	var errs []error
	for _, packet := range packets {
		data, err := telemetry.EncodeLines(packet)
		if err != nil {
			log.Printf("[Writer] tenant=%s encode failed for %s: %v", w.tenantID, name, err)
			errs = append(errs, err)
			continue
		}
		if err := w.backend.Append(ctx, name, data); err != nil {
			// One packet's failure never blocks its siblings.
			log.Printf("[Writer] tenant=%s append of %d bytes to %s failed: %v",
				w.tenantID, len(data), name, err)
			metrics.AppendFailures.Inc()
			errs = append(errs, fmt.Errorf("append %s: %w", name, err))
			continue
		}
	}
	return errors.Join(errs...)
}

// Stop cancels future scheduling, waits for any in-flight flush cycle, then
// performs one final synchronous flush to drain what accumulated before the
// cancellation. A failure of that drain comes back as a StopFlushError.
func (w *Writer) Stop() error {
	w.lifecycle.Lock()
	switch w.st {
	case stateStopping, stateStopped:
		w.lifecycle.Unlock()
		return nil
	case stateRunning:
		w.st = stateStopping
		close(w.stopCh)
	default: // never started; nothing scheduled, still drain below
		w.st = stateStopping
	}
	w.lifecycle.Unlock()

	if w.done != nil {
		<-w.done
	}

	err := w.Flush(context.Background())

	w.lifecycle.Lock()
	w.st = stateStopped
	w.lifecycle.Unlock()

	if err != nil {
		return &StopFlushError{TenantID: w.tenantID, Err: err}
	}
	return nil
}
