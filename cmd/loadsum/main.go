package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/grantcarthew/loadsum/internal/cli"
)

// formatCobraError converts verbose Cobra errors to user-friendly messages.
func formatCobraError(err error) string {
	msg := err.Error()

	// "accepts 1 arg(s), received 0" from analyze without a URL.
	if strings.HasPrefix(msg, "accepts 1 arg(s)") {
		return "a URL is required (usage: loadsum analyze <url>)"
	}

	return msg
}

func main() {
	if err := cli.Execute(); err != nil {
		// Print error if not already printed by command handler
		if !cli.IsPrintedError(err) {
			msg := formatCobraError(err)
			if cli.JSONOutput {
				resp := map[string]any{
					"ok":    false,
					"error": msg,
				}
				_ = json.NewEncoder(os.Stderr).Encode(resp)
			} else {
				fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
			}
		}
		os.Exit(1)
	}
}
