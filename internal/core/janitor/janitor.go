// Package janitor finds and removes storage directories no account refers to,
// typically left behind by a teardown that ran out of retries.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/neilberkman/acctabs/internal/core/storage"
	"go.uber.org/zap"
)

// Referenced lists the storage paths that belong to live accounts
type Referenced interface {
	StoragePaths() (map[string]bool, error)
}

// Result summarizes a sweep
type Result struct {
	Orphans []string
	Removed []string
	Failed  map[string]error
}

// Janitor sweeps one data directory
type Janitor struct {
	root    string
	refs    Referenced
	deleter *storage.Deleter
	logger  *zap.Logger
}

// New creates a janitor for root
func New(root string, refs Referenced, deleter *storage.Deleter, logger *zap.Logger) *Janitor {
	if deleter == nil {
		deleter = storage.NewDeleter(storage.DefaultPolicy)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{root: root, refs: refs, deleter: deleter, logger: logger}
}

// Orphans returns storage directories under root that no account references
func (j *Janitor) Orphans() ([]string, error) {
	referenced, err := j.refs.StoragePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage paths: %w", err)
	}

	entries, err := os.ReadDir(j.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", j.root, err)
	}

	var orphans []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), storage.DirPrefix) {
			continue
		}
		path := filepath.Clean(filepath.Join(j.root, entry.Name()))
		if !referenced[path] {
			orphans = append(orphans, path)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

// Sweep removes every orphan. With dryRun it only reports them.
// Directories that stay busy are reported in Failed and left in place.
func (j *Janitor) Sweep(ctx context.Context, dryRun bool) (*Result, error) {
	orphans, err := j.Orphans()
	if err != nil {
		return nil, err
	}

	result := &Result{Orphans: orphans, Failed: make(map[string]error)}
	if dryRun {
		return result, nil
	}

	for _, path := range orphans {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := j.deleter.Delete(ctx, path); err != nil {
			j.logger.Warn("orphaned storage still busy",
				zap.String("storage_path", path),
				zap.Error(err))
			result.Failed[path] = err
			continue
		}
		j.logger.Info("removed orphaned storage", zap.String("storage_path", path))
		result.Removed = append(result.Removed, path)
	}
	return result, nil
}
