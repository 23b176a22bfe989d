package contentview

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// ErrNoBrowser is returned when no Chromium-family browser can be found.
var ErrNoBrowser = errors.New("no chromium-based browser found on PATH")

// DefaultFlags keep a long-running messaging tab stable with a bounded
// renderer footprint.
var DefaultFlags = []string{
	"--disable-gpu-process-crash-limit",
	"--no-sandbox",
	"--disable-dev-shm-usage",
	"--disable-extensions",
	"--disable-breakpad",
	"--no-first-run",
	"--no-default-browser-check",
	"--disable-sync",
	"--renderer-process-limit=3",
	"--js-flags=--max-old-space-size=512",
}

// candidates are tried in order when no browser is configured
var candidates = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"brave-browser",
	"microsoft-edge",
}

// Browser is an Engine that runs each view as its own Chromium process in
// app mode, with the account's storage directory as the profile.
//
// Zoom changes take effect the next time the view navigates.
type Browser struct {
	Binary string
	Flags  []string

	logger  *zap.Logger
	command func(name string, args ...string) *exec.Cmd
}

// NewBrowser resolves binary (or auto-detects one when empty).
func NewBrowser(binary string, flags []string, logger *zap.Logger) (*Browser, error) {
	path, err := findBrowser(binary)
	if err != nil {
		return nil, err
	}
	if flags == nil {
		flags = DefaultFlags
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{
		Binary:  path,
		Flags:   flags,
		logger:  logger,
		command: exec.Command,
	}, nil
}

func findBrowser(binary string) (string, error) {
	if binary != "" {
		path, err := exec.LookPath(binary)
		if err != nil {
			return "", fmt.Errorf("browser %q: %w", binary, err)
		}
		return path, nil
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNoBrowser
}

// Create returns a view bound to opts.StoragePath. No process runs until Navigate.
func (b *Browser) Create(opts Options, handler func(Event)) (View, error) {
	if opts.StoragePath == "" {
		return nil, errors.New("content view needs a storage path")
	}
	zoom := opts.Zoom
	if zoom <= 0 {
		zoom = 1.0
	}
	return &browserView{
		engine:  b,
		opts:    opts,
		zoom:    zoom,
		handler: handler,
	}, nil
}

type browserView struct {
	engine  *Browser
	opts    Options
	handler func(Event)

	mu       sync.Mutex
	cmd      *exec.Cmd
	gen      uint64 // bumped on every launch and kill; stale exits are ignored
	zoom     float64
	disposed bool
}

func (v *browserView) args(url string) []string {
	args := []string{"--user-data-dir=" + v.opts.StoragePath}
	if v.opts.UserAgent != "" {
		args = append(args, "--user-agent="+v.opts.UserAgent)
	}
	args = append(args, "--force-device-scale-factor="+strconv.FormatFloat(v.zoom, 'f', 2, 64))
	args = append(args, v.engine.Flags...)
	return append(args, "--app="+url)
}

func (v *browserView) Navigate(url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return ErrDisposed
	}

	v.killLocked()

	command := v.engine.command
	if command == nil {
		command = exec.Command
	}
	cmd := command(v.engine.Binary, v.args(url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	v.gen++
	v.cmd = cmd
	v.engine.logger.Debug("browser launched",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("profile", v.opts.StoragePath))

	go v.waitLoop(cmd, v.gen)
	return nil
}

// waitLoop reports the load, then the process exit, unless the process was
// replaced or killed on purpose in the meantime.
func (v *browserView) waitLoop(cmd *exec.Cmd, gen uint64) {
	if v.current(gen) {
		v.handler(Event{Kind: LoadFinished, OK: true})
	}

	err := cmd.Wait()

	v.mu.Lock()
	stale := gen != v.gen
	if !stale {
		v.cmd = nil
	}
	v.mu.Unlock()
	if stale {
		return
	}

	ev := Event{Kind: RenderProcessTerminated, Status: StatusNormal}
	if err != nil {
		ev.Status = StatusAbnormal
		ev.ExitCode = -1
		ev.Reason = err.Error()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			ev.ExitCode = exitErr.ExitCode()
		}
	}
	v.engine.logger.Debug("browser exited",
		zap.String("profile", v.opts.StoragePath),
		zap.Stringer("status", ev.Status),
		zap.Int("exit_code", ev.ExitCode))
	v.handler(ev)
}

func (v *browserView) current(gen uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return gen == v.gen && !v.disposed
}

func (v *browserView) killLocked() {
	if v.cmd == nil || v.cmd.Process == nil {
		return
	}
	v.gen++
	_ = v.cmd.Process.Kill()
	v.cmd = nil
}

func (v *browserView) SetZoomFactor(factor float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return ErrDisposed
	}
	v.zoom = factor
	return nil
}

func (v *browserView) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.killLocked()
}

func (v *browserView) Dispose() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.killLocked()
	v.disposed = true
	return nil
}
