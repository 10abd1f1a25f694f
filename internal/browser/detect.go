// Package browser locates, launches and tears down a Chrome process with
// remote debugging enabled.
package browser

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
)

// ChromeEnv names the environment variable that overrides Chrome discovery.
const ChromeEnv = "LOADSUM_CHROME"

// ErrChromeNotFound is returned when no Chrome binary can be located.
var ErrChromeNotFound = errors.New("chrome not found")

// chromePaths returns the list of paths to search for Chrome on the current platform.
func chromePaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/usr/bin/headless-shell",
			"/snap/bin/chromium",
			"google-chrome",
			"google-chrome-stable",
			"chromium",
			"chromium-browser",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			"chrome.exe",
		}
	default:
		return nil
	}
}

// FindChrome returns the Chrome executable to launch. An explicit path wins,
// then LOADSUM_CHROME, then the platform's usual install locations.
func FindChrome(explicit string) (string, error) {
	if explicit != "" {
		return lookPath(explicit)
	}

	if envPath := os.Getenv(ChromeEnv); envPath != "" {
		return lookPath(envPath)
	}

	for _, path := range chromePaths() {
		if found, err := exec.LookPath(path); err == nil {
			return found, nil
		}
	}

	return "", ErrChromeNotFound
}

func lookPath(path string) (string, error) {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, nil
	}
	if found, err := exec.LookPath(path); err == nil {
		return found, nil
	}
	return "", ErrChromeNotFound
}
