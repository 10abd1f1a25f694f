package browser

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// Browser represents a running Chrome instance with CDP enabled.
type Browser struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	port     int
	dataDir  string
	ownsData bool
	exited   chan struct{}
}

// ErrStartTimeout is returned when the browser fails to start in time.
var ErrStartTimeout = errors.New("browser start timeout")

// ErrExited is returned when the process dies before its endpoint comes up.
var ErrExited = errors.New("browser exited during startup")

// StartTimeout bounds how long Start waits for the debugging endpoint.
const StartTimeout = 30 * time.Second

// Start launches Chrome and waits until its CDP endpoint answers.
func Start(ctx context.Context, opts LaunchOptions) (*Browser, error) {
	binPath, err := FindChrome(opts.Binary)
	if err != nil {
		return nil, err
	}

	cmd, dataDir, created, err := spawnProcess(binPath, opts)
	if err != nil {
		return nil, err
	}

	b := &Browser{
		cmd:      cmd,
		port:     opts.Port,
		dataDir:  dataDir,
		ownsData: created,
		exited:   make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(b.exited)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, StartTimeout)
	defer cancel()

	if err := b.waitForCDP(waitCtx); err != nil {
		b.Close()
		return nil, err
	}

	return b, nil
}

// waitForCDP polls until the endpoint responds, the process exits or ctx ends.
func (b *Browser) waitForCDP(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrStartTimeout
			}
			return ctx.Err()
		case <-b.exited:
			return ErrExited
		case <-ticker.C:
			if b.port == 0 {
				port, err := readPortFile(filepath.Join(b.dataDir, devToolsPortFile))
				if err != nil {
					continue
				}
				b.port = port
			}
			if _, err := FetchVersion(ctx, "127.0.0.1", b.port); err == nil {
				return nil
			}
		}
	}
}

// Port returns the CDP debugging port.
func (b *Browser) Port() int {
	return b.port
}

// PID returns the browser process ID.
func (b *Browser) PID() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cmd == nil || b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}

// Version fetches the browser version information, including the
// browser-level WebSocket URL.
func (b *Browser) Version(ctx context.Context) (*VersionInfo, error) {
	return FetchVersion(ctx, "127.0.0.1", b.port)
}

// Close terminates the browser process and removes a throwaway profile.
// It is safe to call more than once.
func (b *Browser) Close() error {
	b.mu.Lock()
	cmd := b.cmd
	b.cmd = nil
	b.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		_ = cmd.Process.Kill()
	}

	select {
	case <-b.exited:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		<-b.exited
	}

	if b.ownsData && b.dataDir != "" {
		return os.RemoveAll(b.dataDir)
	}
	return nil
}
