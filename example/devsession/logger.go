package main

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// zlogger adapts zerolog to the key-value Logger used by localsocket.
type zlogger struct {
	l zerolog.Logger
}

func newLogger(out io.Writer, level, role string) (zlogger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zlogger{}, err
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	l := zerolog.New(output).Level(lvl).With().Timestamp().Str("role", role).Logger()
	return zlogger{l: l}, nil
}

func (z zlogger) Debug(msg string, args ...any) { z.l.Debug().Fields(args).Msg(msg) }
func (z zlogger) Info(msg string, args ...any)  { z.l.Info().Fields(args).Msg(msg) }
func (z zlogger) Warn(msg string, args ...any)  { z.l.Warn().Fields(args).Msg(msg) }
func (z zlogger) Error(msg string, args ...any) { z.l.Error().Fields(args).Msg(msg) }
