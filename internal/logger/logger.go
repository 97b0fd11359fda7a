package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog instance. Console output is used when
// stdout is a terminal, JSON otherwise.
func Init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if fi, err := os.Stdout.Stat(); err == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	log.Logger = log.With().Caller().Logger()
}
