// Package storage names and removes per-account profile directories.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/sethvargo/go-retry"
	"golang.org/x/text/unicode/norm"
)

// DirPrefix is the prefix of every account storage directory.
const DirPrefix = "session_"

// Policy controls how often a busy directory is retried.
type Policy struct {
	Attempts int
	Spacing  time.Duration
}

// DefaultPolicy retries a busy directory three times, half a second apart.
var DefaultPolicy = Policy{Attempts: 3, Spacing: 500 * time.Millisecond}

// TeardownIncompleteError reports a directory that could not be deleted.
// The owning record is already gone; the directory is left for a later sweep.
type TeardownIncompleteError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *TeardownIncompleteError) Error() string {
	return fmt.Sprintf("storage teardown incomplete for %s after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *TeardownIncompleteError) Unwrap() error {
	return e.Err
}

// DirName returns the directory name for an account called name.
func DirName(name string) string {
	return DirPrefix + Slug(name)
}

// Slug turns a display name into a filesystem-safe, lowercase token.
// Spaces become underscores, accents are folded, anything else unsafe is dropped.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(strings.TrimSpace(name)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark left over from decomposition
		case r == ' ' || r == '\t':
			b.WriteRune('_')
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
		}
	}

	slug := strings.TrimLeft(b.String(), ".")
	if slug == "" {
		return "account"
	}
	return slug
}

// IsBusy reports whether err means the directory is held open or locked
// and may succeed on a later attempt.
func IsBusy(err error) bool {
	return errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY) ||
		errors.Is(err, os.ErrPermission)
}

// Deleter removes storage directories, retrying while they are busy.
type Deleter struct {
	Policy    Policy
	RemoveAll func(path string) error
}

// NewDeleter returns a Deleter using os.RemoveAll.
func NewDeleter(policy Policy) *Deleter {
	return &Deleter{Policy: policy, RemoveAll: os.RemoveAll}
}

// Delete removes path. Busy failures are retried per the policy; any final
// failure is returned as a *TeardownIncompleteError. A missing path is not an error.
func (d *Deleter) Delete(ctx context.Context, path string) error {
	attempts := d.Policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	spacing := d.Policy.Spacing
	if spacing <= 0 {
		spacing = time.Millisecond
	}
	removeAll := d.RemoveAll
	if removeAll == nil {
		removeAll = os.RemoveAll
	}

	tried := 0
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(spacing))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tried++
		err := removeAll(path)
		if err != nil && IsBusy(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return &TeardownIncompleteError{Path: path, Attempts: tried, Err: err}
	}
	return nil
}
