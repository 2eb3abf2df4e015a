package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirMode  = 0o755 // Standard directory permissions
	fileMode = 0o644 // Standard file permissions
)

// Filesystem stores each target as an append-only file under a root
// directory.
type Filesystem struct {
	root string
}

func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		return nil, errors.New("filesystem backend requires a path")
	}
	if err := os.MkdirAll(root, dirMode); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(f.root, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (f *Filesystem) Create(_ context.Context, name string) error {
	file, err := os.OpenFile(filepath.Join(f.root, name), os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("create target %s: %w", name, err)
	}
	return file.Close()
}

func (f *Filesystem) Append(_ context.Context, name string, data []byte) error {
	file, err := os.OpenFile(filepath.Join(f.root, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("open target %s: %w", name, err)
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("append to target %s: %w", name, err)
	}
	return nil
}
