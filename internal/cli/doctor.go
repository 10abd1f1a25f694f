package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/grantcarthew/loadsum/internal/browser"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that Chrome can be found and launched",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// DoctorData is the doctor report.
type DoctorData struct {
	Chrome    string `json:"chrome"`
	Browser   string `json:"browser"`
	Protocol  string `json:"protocol"`
	UserAgent string `json:"user_agent"`
}

// startBrowser is replaceable for testing.
var startBrowser = browser.Start

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return outputError(err.Error())
	}

	path, err := browser.FindChrome(cfg.Chrome)
	if err != nil {
		return outputError(fmt.Sprintf("%v (set --chrome or %s)", err, browser.ChromeEnv))
	}

	ctx, cancel := context.WithTimeout(context.Background(), browser.StartTimeout+5*time.Second)
	defer cancel()

	opts := launchOptions(cfg)
	opts.Binary = path
	b, err := startBrowser(ctx, opts)
	if err != nil {
		return outputError(fmt.Sprintf("launch %s: %v", path, err))
	}
	defer b.Close()

	info, err := b.Version(ctx)
	if err != nil {
		return outputError(fmt.Sprintf("query version: %v", err))
	}

	data := DoctorData{
		Chrome:    path,
		Browser:   info.Browser,
		Protocol:  info.ProtocolVer,
		UserAgent: info.UserAgent,
	}
	if JSONOutput {
		return outputSuccess(data)
	}

	fmt.Fprintf(os.Stdout, "chrome:   %s\n", data.Chrome)
	fmt.Fprintf(os.Stdout, "browser:  %s\n", data.Browser)
	fmt.Fprintf(os.Stdout, "protocol: %s\n", data.Protocol)
	if shouldUseColor() {
		color.New(color.FgGreen).Fprintln(os.Stdout, "OK")
	} else {
		fmt.Fprintln(os.Stdout, "OK")
	}
	return nil
}
