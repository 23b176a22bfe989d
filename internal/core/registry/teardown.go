package registry

import "context"

// Teardown tracks the background deletion of a removed account's storage.
// The account is already gone from the registry and the store when a
// Teardown is handed out.
type Teardown struct {
	ID          int64
	StoragePath string

	done chan struct{}
	err  error
}

func newTeardown(id int64, path string) *Teardown {
	return &Teardown{ID: id, StoragePath: path, done: make(chan struct{})}
}

func (t *Teardown) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed once the directory is deleted or given up on
func (t *Teardown) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the teardown finishes. A non-nil result is a
// *storage.TeardownIncompleteError: the directory was left on disk.
func (t *Teardown) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
