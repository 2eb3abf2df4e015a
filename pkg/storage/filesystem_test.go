package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fleetdata/blobsink/pkg/config"
)

func configTenant(id, backend string) config.TenantConfig {
	return config.TenantConfig{ID: id, Backend: backend}
}

func TestFilesystemCreateAndExists(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	ctx := context.Background()

	exists, err := fs.Exists(ctx, "heartbeat.20240101.08.fd")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("Expected target to be absent before create")
	}

	if err := fs.Create(ctx, "heartbeat.20240101.08.fd"); err != nil {
		t.Fatalf("create: %v", err)
	}

	exists, err = fs.Exists(ctx, "heartbeat.20240101.08.fd")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Error("Expected target to exist after create")
	}
}

func TestFilesystemCreateIsIdempotent(t *testing.T) {
	root := t.TempDir()
	fs, err := NewFilesystem(root)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	ctx := context.Background()

	if err := fs.Create(ctx, "t.fd"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := fs.Append(ctx, "t.fd", []byte("line\n")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := fs.Create(ctx, "t.fd"); err != nil {
		t.Fatalf("second create: %v", err)
	}

	// Re-creating must not truncate existing data.
	data, err := os.ReadFile(filepath.Join(root, "t.fd"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "line\n" {
		t.Errorf("Expected data preserved across create, got %q", string(data))
	}
}

func TestFilesystemAppendConcatenates(t *testing.T) {
	root := t.TempDir()
	fs, err := NewFilesystem(root)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	ctx := context.Background()

	if err := fs.Create(ctx, "t.fd"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := fs.Append(ctx, "t.fd", []byte("a\n")); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := fs.Append(ctx, "t.fd", []byte("b\n")); err != nil {
		t.Fatalf("second append: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "t.fd"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "a\nb\n" {
		t.Errorf("Expected 'a\\nb\\n', got %q", string(data))
	}
}

func TestNewFilesystemRequiresPath(t *testing.T) {
	if _, err := NewFilesystem(""); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestForTenantUnknownBackend(t *testing.T) {
	_, err := ForTenant(context.Background(), configTenant("x", "carrier-pigeon"))
	if err == nil {
		t.Error("Expected error for unknown backend kind")
	}
}

func TestForTenantDefaultsToFilesystem(t *testing.T) {
	tenant := configTenant("x", "")
	tenant.Path = t.TempDir()

	backend, err := ForTenant(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := backend.(*Filesystem); !ok {
		t.Errorf("Expected *Filesystem, got %T", backend)
	}
}
