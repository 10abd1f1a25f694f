package browser

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// VersionInfo is the browser's /json/version document.
type VersionInfo struct {
	Browser       string `json:"Browser"`
	ProtocolVer   string `json:"Protocol-Version"`
	UserAgent     string `json:"User-Agent"`
	V8Version     string `json:"V8-Version"`
	WebKitVersion string `json:"WebKit-Version"`
	WebSocketURL  string `json:"webSocketDebuggerUrl"`
}

// FetchVersion retrieves browser version info from the CDP endpoint.
// The caller's context bounds the request.
func FetchVersion(ctx context.Context, host string, port int) (*VersionInfo, error) {
	url := fmt.Sprintf("http://%s:%d/json/version", host, port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch version: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var info VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("parse version: %w", err)
	}
	if info.WebSocketURL == "" {
		return nil, errors.New("version response has no webSocketDebuggerUrl")
	}

	return &info, nil
}

// readPortFile parses the first line of a DevToolsActivePort file.
func readPortFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return 0, err
		}
		return 0, errors.New("empty port file")
	}

	port, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("invalid port in %s: %q", path, sc.Text())
	}
	return port, nil
}
