package browser

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// LaunchOptions configures browser launch behavior.
type LaunchOptions struct {
	// Binary is the Chrome executable. Empty means FindChrome("").
	Binary string

	// Headless runs the browser without a visible window.
	Headless bool

	// Port for CDP remote debugging. Zero lets Chrome pick a free port,
	// which is read back from DevToolsActivePort.
	Port int

	// UserDataDir is the profile directory. Empty creates a throwaway one
	// that Close removes.
	UserDataDir string

	// DisableCache adds the flags that keep Chrome from reusing any cache.
	DisableCache bool

	// Args are appended verbatim after the built-in flags.
	Args []string
}

// devToolsPortFile is written by Chrome into the profile directory once the
// debugging endpoint is listening.
const devToolsPortFile = "DevToolsActivePort"

// cacheArgs defeat every Chrome-side cache layer.
var cacheArgs = []string{
	"--disable-cache",
	"--disk-cache-size=0",
	"--media-cache-size=0",
	"--disable-application-cache",
	"--disable-default-apps",
	"--disable-background-networking",
}

// buildArgs constructs the Chrome command line arguments.
func buildArgs(opts LaunchOptions) []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", opts.Port),
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-background-networking",
		"--disable-sync",
		"--disable-popup-blocking",
	}

	// Platform-specific flags to avoid system dialogs
	switch runtime.GOOS {
	case "darwin":
		args = append(args, "--use-mock-keychain")
	case "linux":
		args = append(args, "--password-store=basic")
	}

	if opts.Headless {
		args = append(args, "--headless")
	}

	if opts.DisableCache {
		for _, a := range cacheArgs {
			if !contains(args, a) {
				args = append(args, a)
			}
		}
	}

	if opts.UserDataDir != "" {
		args = append(args, fmt.Sprintf("--user-data-dir=%s", opts.UserDataDir))
	}

	args = append(args, opts.Args...)

	// Open about:blank to avoid any default page loading
	return append(args, "about:blank")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// spawnProcess starts the browser without waiting for it.
// It returns the command, the profile directory and whether the directory
// was created here.
func spawnProcess(binPath string, opts LaunchOptions) (*exec.Cmd, string, bool, error) {
	dataDir := opts.UserDataDir
	created := false
	if dataDir == "" {
		dir, err := os.MkdirTemp("", "loadsum-chrome-*")
		if err != nil {
			return nil, "", false, fmt.Errorf("create temp dir: %w", err)
		}
		dataDir = dir
		created = true
	} else {
		// A stale port file from an earlier run would point at a dead endpoint.
		_ = os.Remove(filepath.Join(dataDir, devToolsPortFile))
	}
	opts.UserDataDir = dataDir

	cmd := exec.Command(binPath, buildArgs(opts)...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		if created {
			os.RemoveAll(dataDir)
		}
		return nil, "", false, fmt.Errorf("start browser: %w", err)
	}

	return cmd, dataDir, created, nil
}
