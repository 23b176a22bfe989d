//go:build !unix

package instancelock

import (
	"fmt"
	"os"
	"path/filepath"
)

// Lock is a no-op on platforms without flock
type Lock struct {
	path string
}

// Acquire only makes sure the data directory exists
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Lock{path: filepath.Join(dir, FileName)}, nil
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// Release is a no-op
func (l *Lock) Release() error {
	return nil
}
