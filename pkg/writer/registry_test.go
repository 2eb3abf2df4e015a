package writer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fleetdata/blobsink/pkg/config"
	"github.com/fleetdata/blobsink/pkg/telemetry"
)

func tenantConfigs(t *testing.T, ids ...string) []config.TenantConfig {
	t.Helper()
	root := t.TempDir()
	var tenants []config.TenantConfig
	for _, id := range ids {
		tenants = append(tenants, config.TenantConfig{
			ID:      id,
			Backend: "filesystem",
			Path:    filepath.Join(root, id),
		})
	}
	return tenants
}

func TestRegistryInitializeAndLookup(t *testing.T) {
	r := NewRegistry(testWriterConfig())
	if err := r.Initialize(context.Background(), tenantConfigs(t, "werner", "dev")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	w, err := r.Lookup("werner")
	if err != nil {
		t.Fatalf("Expected writer for 'werner', got %v", err)
	}
	if w.TenantID() != "werner" {
		t.Errorf("Expected tenant 'werner', got '%s'", w.TenantID())
	}

	if _, err := r.Lookup("ghost"); err == nil {
		t.Error("Expected TenantNotRegisteredError for unknown tenant")
	}
}

func TestRegistryDispatchUnknownTenant(t *testing.T) {
	r := NewRegistry(testWriterConfig())
	if err := r.Initialize(context.Background(), tenantConfigs(t, "werner")); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	err := r.Dispatch("ghost", telemetry.Record{"type": "heartbeat", "timestamp": "2024-01-01T08:00:00Z"})
	if err == nil {
		t.Fatal("Expected error for unregistered tenant, got nil")
	}
	var notRegistered *TenantNotRegisteredError
	if !errors.As(err, &notRegistered) {
		t.Fatalf("Expected TenantNotRegisteredError, got %T", err)
	}
	if notRegistered.TenantID != "ghost" {
		t.Errorf("Expected tenant id 'ghost' in error, got '%s'", notRegistered.TenantID)
	}

	// No writer buffer was touched.
	w, err := r.Lookup("werner")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if w.Len() != 0 {
		t.Errorf("Expected untouched buffer, got %d records", w.Len())
	}
}

func TestRegistryDispatchRoutesToTenantWriter(t *testing.T) {
	r := NewRegistry(testWriterConfig())
	if err := r.Initialize(context.Background(), tenantConfigs(t, "werner", "dev")); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	rec := telemetry.Record{"type": "heartbeat", "timestamp": "2024-01-01T08:00:00Z"}
	if err := r.Dispatch("dev", rec); err != nil {
		t.Fatalf("Expected dispatch to succeed, got %v", err)
	}

	dev, _ := r.Lookup("dev")
	werner, _ := r.Lookup("werner")
	if dev.Len() != 1 {
		t.Errorf("Expected 1 buffered record for 'dev', got %d", dev.Len())
	}
	if werner.Len() != 0 {
		t.Errorf("Expected 0 buffered records for 'werner', got %d", werner.Len())
	}
}

func TestRegistryInitializeSkipsUnavailableBackend(t *testing.T) {
	tenants := tenantConfigs(t, "good")
	tenants = append(tenants, config.TenantConfig{ID: "bad", Backend: "carrier-pigeon"})

	r := NewRegistry(testWriterConfig())
	err := r.Initialize(context.Background(), tenants)
	if err == nil {
		t.Fatal("Expected aggregated error for unavailable backend, got nil")
	}
	var unavailable *StorageUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Expected StorageUnavailableError, got %T", err)
	}
	if unavailable.TenantID != "bad" {
		t.Errorf("Expected tenant 'bad', got '%s'", unavailable.TenantID)
	}

	// The healthy tenant registered anyway.
	if _, err := r.Lookup("good"); err != nil {
		t.Errorf("Expected 'good' to be registered, got %v", err)
	}
	if _, err := r.Lookup("bad"); err == nil {
		t.Error("Expected 'bad' to be absent")
	}
}

func TestRegistryInitializeReplacesWholesale(t *testing.T) {
	r := NewRegistry(testWriterConfig())
	if err := r.Initialize(context.Background(), tenantConfigs(t, "old")); err != nil {
		t.Fatalf("first initialize: %v", err)
	}
	if err := r.Initialize(context.Background(), tenantConfigs(t, "new")); err != nil {
		t.Fatalf("second initialize: %v", err)
	}

	if _, err := r.Lookup("old"); err == nil {
		t.Error("Expected 'old' to be gone after re-initialization")
	}
	if _, err := r.Lookup("new"); err != nil {
		t.Errorf("Expected 'new' to be registered, got %v", err)
	}
}

func TestRegistryStopAllCollectsFailures(t *testing.T) {
	r := NewRegistry(testWriterConfig())

	failing := newFakeBackend()
	failing.failNames["heartbeat.20240101.08.fd"] = true
	healthy := newFakeBackend()

	r.writers = map[string]*Writer{
		"bad":  New("bad", failing, testWriterConfig()),
		"good": New("good", healthy, testWriterConfig()),
	}
	r.StartAll()

	rec := telemetry.Record{"type": "heartbeat", "timestamp": "2024-01-01T08:00:00Z"}
	if err := r.Dispatch("bad", rec); err != nil {
		t.Fatalf("dispatch bad: %v", err)
	}
	if err := r.Dispatch("good", rec); err != nil {
		t.Fatalf("dispatch good: %v", err)
	}

	err := r.StopAll()
	if err == nil {
		t.Fatal("Expected StopAll to report the failing tenant, got nil")
	}
	var stopErr *StopFlushError
	if !errors.As(err, &stopErr) {
		t.Fatalf("Expected StopFlushError in aggregate, got %T", err)
	}

	// The healthy tenant still drained despite the sibling failure.
	if len(healthy.lines("heartbeat.20240101.08.fd")) != 1 {
		t.Error("Expected healthy tenant to drain during StopAll")
	}
}
