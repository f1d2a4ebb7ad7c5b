package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. With file set, log lines are also appended
// to that file without colors. The returned closer releases the file.
func Setup(level, file string) (io.Closer, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	var closer io.Closer = nopCloser{}
	if file != "" {
		f, ferr := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr != nil {
			return nil, fmt.Errorf("open log file: %w", ferr)
		}
		out = zerolog.MultiLevelWriter(out, zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339, NoColor: true})
		closer = f
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(lvl)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
