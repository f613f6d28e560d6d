package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	LevelKey   = "log.level"
	FormatKey  = "log.format"
	NoColorKey = "log.no_color"
)

// Init sets up the global logger from viper and returns it wrapped as a
// Logger. Output goes to w, or stderr when w is nil.
func Init(w io.Writer) Logger {
	var queue []string

	if w == nil {
		w = os.Stderr
	}

	levelStr := strings.ToLower(viper.GetString(LevelKey))
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
		if levelStr != "" {
			queue = append(queue, fmt.Sprintf("invalid log level %q, using info", levelStr))
		}
	}
	zerolog.SetGlobalLevel(level)

	format := strings.ToLower(viper.GetString(FormatKey))
	if format == "json" {
		log.Logger = zerolog.New(w).With().
			Timestamp().
			Logger()
	} else {
		if format != "" && format != "console" {
			queue = append(queue, fmt.Sprintf("unknown log format %q, using console", format))
		}
		log.Logger = zerolog.New(zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
			cw.Out = w
			cw.NoColor = viper.GetBool(NoColorKey)
			cw.TimeFormat = "15:04:05.000"
		})).With().
			Timestamp().
			Logger()
	}

	// now that the logger exists, flush anything we could not log earlier
	for _, msg := range queue {
		log.Warn().Msg(msg)
	}

	return FromZerolog(log.Logger)
}
