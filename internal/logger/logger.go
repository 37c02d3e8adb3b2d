package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

// Log is the global logger instance
var Log *slog.Logger

type Options struct {
	AppName     string
	Environment string
	Development bool
	SentryDSN   string
	Output      io.Writer // Defaults to os.Stdout
}

// Init builds the logger and installs it as the slog default
func Init(opts Options) {
	Log = New(opts)
	slog.SetDefault(Log)
}

// New builds a logger based on environment
// Development: Text format with Debug level
// Production: JSON format with Info level
// Optionally sends errors to Sentry for error tracking
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var handlers []slog.Handler

	// Base handler (always enabled)
	if opts.Development {
		handlers = append(handlers, slog.NewTextHandler(out, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		handlers = append(handlers, slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	// Optional Sentry handler (sends errors only)
	var sentryErr error
	if opts.SentryDSN != "" {
		sentryErr = sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Environment,
			ServerName:  opts.AppName,
		})
		if sentryErr == nil {
			handlers = append(handlers, slogsentry.Option{
				Level:     slog.LevelError,
				AddSource: true,
			}.NewSentryHandler())
		}
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = slogmulti.Fanout(handlers...)
	} else {
		handler = handlers[0]
	}

	log := slog.New(handler)
	if opts.AppName != "" {
		log = log.With("app", opts.AppName)
	}
	if sentryErr != nil {
		log.Warn("sentry disabled", "error", sentryErr)
	}
	return log
}
