package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/acctabs/internal/core/credential"
	"github.com/neilberkman/acctabs/internal/core/registry"
	"github.com/neilberkman/acctabs/internal/core/session"
)

// opTimeout bounds one registry call made from the UI
const opTimeout = 10 * time.Second

// Registry is what the UI drives
type Registry interface {
	Add(ctx context.Context, name string) (int64, error)
	Remove(ctx context.Context, id int64) (*registry.Teardown, error)
	Reorder(ctx context.Context, fromSlot, toSlot int) error
	Rename(ctx context.Context, id int64, name string) error
	SetPassword(ctx context.Context, id int64, current, secret string) error
	ClearPassword(ctx context.Context, id int64, current string) error
	Lock(ctx context.Context, id int64) error
	Unlock(ctx context.Context, id int64, secret string) error
	ZoomIn(ctx context.Context, id int64) (float64, error)
	ZoomOut(ctx context.Context, id int64) (float64, error)
	ResetZoom(ctx context.Context, id int64) (float64, error)
	Reload(ctx context.Context, id int64) error
	Activate(ctx context.Context, id int64) error
	Snapshot(ctx context.Context) ([]registry.SessionInfo, error)
}

// Registry notifications, see Bridge

type sessionAddedMsg struct {
	id    int64
	label string
}

type sessionRemovedMsg struct {
	id int64
}

type slotOrderMsg struct {
	ids []int64
}

type lockStateMsg struct {
	id    int64
	state session.LockState
}

type zoomMsg struct {
	id      int64
	percent int
}

type crashMsg struct {
	id     int64
	reason string
}

type labelMsg struct {
	id    int64
	label string
}

type teardownMsg struct {
	id   int64
	path string
	err  error
}

// Command results

type snapshotMsg struct {
	sessions []registry.SessionInfo
}

// opDoneMsg reports a finished registry call. A snapshot reload follows.
type opDoneMsg struct {
	status string
	err    error
	focus  int64 // select this tab afterwards when non-zero
}

type errMsg struct {
	err error
}

func loadSnapshot(reg Registry) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		infos, err := reg.Snapshot(ctx)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{sessions: infos}
	}
}

// run wraps a registry call as a command reporting opDoneMsg
func run(status string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: status}
	}
}

func addAccount(reg Registry, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		id, err := reg.Add(ctx, name)
		if err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: fmt.Sprintf("Added %s", name), focus: id}
	}
}

func removeAccount(reg Registry, id int64, name string) tea.Cmd {
	return run(fmt.Sprintf("Removed %s", name), func(ctx context.Context) error {
		// Teardown finishes in the background; failures arrive as teardownMsg
		_, err := reg.Remove(ctx, id)
		return err
	})
}

func zoomCmd(status string, fn func(ctx context.Context) (float64, error)) tea.Cmd {
	return run(status, func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	})
}

func activate(reg Registry, id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := reg.Activate(ctx, id); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		// Use cross-platform clipboard library
		if err := clipboard.WriteAll(text); err != nil {
			return opDoneMsg{status: "Path: " + text}
		}
		return opDoneMsg{status: "Profile path copied to clipboard!"}
	}
}

// describe turns registry errors into status line text
func describe(err error) string {
	switch {
	case errors.Is(err, credential.ErrCredentialRejected):
		return "Wrong password"
	case errors.Is(err, registry.ErrCapacityExceeded):
		return err.Error() + " (raise max_sessions to add more)"
	case errors.Is(err, registry.ErrSessionLocked):
		return "Unlock it first"
	case errors.Is(err, registry.ErrSessionNotFound):
		return "That account is gone"
	case errors.Is(err, registry.ErrClosed):
		return "Shutting down"
	default:
		return err.Error()
	}
}
