// Package storage provides append-only target backends for the blob sink.
// A target is a named, append-only object; the writer only ever checks for
// existence, creates, and appends.
package storage

import (
	"context"
	"fmt"

	"github.com/fleetdata/blobsink/pkg/config"
)

// Backend is the contract every append target store implements.
type Backend interface {
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, name string) error
	Append(ctx context.Context, name string, data []byte) error
}

// ForTenant builds the backend a tenant's writer appends to. A construction
// failure means the backend is unavailable and the tenant's writer cannot
// start; other tenants are unaffected.
func ForTenant(ctx context.Context, t config.TenantConfig) (Backend, error) {
	switch t.Backend {
	case "filesystem", "":
		return NewFilesystem(t.Path)
	case "s3":
		return NewS3(ctx, t.S3)
	default:
		return nil, fmt.Errorf("unknown backend %q for tenant %s", t.Backend, t.ID)
	}
}
