// Package logging builds the zerolog loggers used across loadsum.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// ParseLevel maps a level name to a zerolog level. "off" disables logging
// and an empty name means warn, which keeps the interactive display free of
// routine chatter.
func ParseLevel(level string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	switch name {
	case "":
		return zerolog.WarnLevel, nil
	case "off":
		return zerolog.Disabled, nil
	}
	l, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// New returns a timestamped logger writing to w. Terminals get the human
// console format; anything else gets JSON lines.
func New(level string, w io.Writer) zerolog.Logger {
	out := w
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "15:04:05.000",
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
