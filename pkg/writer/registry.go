package writer

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/fleetdata/blobsink/pkg/config"
	"github.com/fleetdata/blobsink/pkg/metrics"
	"github.com/fleetdata/blobsink/pkg/storage"
	"github.com/fleetdata/blobsink/pkg/telemetry"
)

// Registry owns one writer per tenant and is the single dispatch entry
// point for inbound records. Construct it once and pass it by reference;
// there is no package-level writer table.
type Registry struct {
	cfg config.WriterConfig

	mu      sync.RWMutex
	writers map[string]*Writer
}

func NewRegistry(cfg config.WriterConfig) *Registry {
	return &Registry{
		cfg:     cfg,
		writers: make(map[string]*Writer),
	}
}

// Initialize builds one idle writer per tenant entry, replacing any
// previous mapping wholesale. Tenants whose backend cannot be built are
// skipped; their failures come back joined, with the remaining tenants
// registered normally.
func (r *Registry) Initialize(ctx context.Context, tenants []config.TenantConfig) error {
	writers := make(map[string]*Writer, len(tenants))
	var errs []error

	for _, tenant := range tenants {
		backend, err := storage.ForTenant(ctx, tenant)
		if err != nil {
			log.Printf("[Registry] tenant=%s backend unavailable: %v", tenant.ID, err)
			errs = append(errs, &StorageUnavailableError{TenantID: tenant.ID, Err: err})
			continue
		}
		writers[tenant.ID] = New(tenant.ID, backend, r.cfg)
	}

	r.mu.Lock()
	r.writers = writers
	r.mu.Unlock()

	log.Printf("[Registry] Initialized %d writer(s)", len(writers))
	return errors.Join(errs...)
}

// StartAll launches every writer's flush loop.
func (r *Registry) StartAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, w := range r.writers {
		w.Start()
	}
}

// Lookup resolves a tenant's writer.
func (r *Registry) Lookup(tenantID string) (*Writer, error) {
	r.mu.RLock()
	w, ok := r.writers[tenantID]
	r.mu.RUnlock()

	if !ok {
		return nil, &TenantNotRegisteredError{TenantID: tenantID}
	}
	return w, nil
}

// Dispatch routes a record to its tenant's writer. All batching lives in
// the writer; this is a single synchronous lookup + enqueue.
func (r *Registry) Dispatch(tenantID string, rec telemetry.Record) error {
	w, err := r.Lookup(tenantID)
	if err != nil {
		return err
	}
	w.Enqueue(rec)
	metrics.RecordsDispatched.Inc()
	return nil
}

// StopAll stops every writer, draining each once. Failures are collected
// per tenant rather than aborting on the first one.
func (r *Registry) StopAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, w := range r.writers {
		if err := w.Stop(); err != nil {
			log.Printf("[Registry] tenant=%s stop failed: %v", w.TenantID(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
