package browser

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestChromePaths_ReturnsPathsForCurrentOS(t *testing.T) {
	t.Parallel()

	paths := chromePaths()

	switch runtime.GOOS {
	case "darwin", "linux", "windows":
		if len(paths) == 0 {
			t.Error("expected non-empty paths for supported OS")
		}
	default:
		if len(paths) != 0 {
			t.Errorf("expected empty paths for unsupported OS, got %d", len(paths))
		}
	}
}

func fakeBinary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-chrome")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindChrome_ExplicitPathWins(t *testing.T) {
	explicit := fakeBinary(t)
	t.Setenv(ChromeEnv, "/nonexistent/path/to/chrome")

	path, err := FindChrome(explicit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != explicit {
		t.Errorf("expected %s, got %s", explicit, path)
	}
}

func TestFindChrome_RespectsEnvVar(t *testing.T) {
	fake := fakeBinary(t)
	t.Setenv(ChromeEnv, fake)

	path, err := FindChrome("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != fake {
		t.Errorf("expected %s, got %s", fake, path)
	}
}

func TestFindChrome_InvalidPaths(t *testing.T) {
	t.Setenv(ChromeEnv, "/nonexistent/path/to/chrome")

	if _, err := FindChrome(""); err != ErrChromeNotFound {
		t.Errorf("env: expected ErrChromeNotFound, got %v", err)
	}
	if _, err := FindChrome(t.TempDir()); err != ErrChromeNotFound {
		t.Errorf("directory: expected ErrChromeNotFound, got %v", err)
	}
}

func TestFindChrome_SearchesPaths(t *testing.T) {
	t.Setenv(ChromeEnv, "")

	// Depends on whether Chrome is installed; only the error type is checked.
	path, err := FindChrome("")
	if err == nil {
		if path == "" {
			t.Error("found chrome but path is empty")
		}
		t.Logf("Found Chrome at: %s", path)
	} else if err != ErrChromeNotFound {
		t.Errorf("unexpected error type: %v", err)
	}
}
