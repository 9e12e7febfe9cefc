package identity

import (
	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logging contract used across the package: a
// message followed by alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named, scoped loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LoggerProviderFunc adapts a function to LoggerProvider.
type LoggerProviderFunc func(name string) Logger

func (f LoggerProviderFunc) GetLogger(name string) Logger {
	if f == nil {
		return nil
	}
	return f(name)
}

// GlogProvider wraps a glog base logger so its scoped loggers satisfy the
// local Logger contract.
func GlogProvider(base *glog.BaseLogger) LoggerProvider {
	return LoggerProviderFunc(func(name string) Logger {
		if base == nil {
			return nil
		}
		return base.GetLogger(name)
	})
}

// ResolveLogger resolves a scoped logger from the given provider, falling
// back to the supplied logger (or the package default) when the provider
// cannot produce one. It always returns a usable provider/logger pair.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if fallback == nil {
		fallback = defaultLogger(name)
	}

	if provider == nil {
		fixed := fallback
		return LoggerProviderFunc(func(string) Logger { return fixed }), fallback
	}

	if logger := provider.GetLogger(name); logger != nil {
		return provider, logger
	}

	fixed := fallback
	return LoggerProviderFunc(func(string) Logger { return fixed }), fallback
}

func defaultLogger(name string) Logger {
	base := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("identity"),
		glog.WithAddSource(false),
	)
	return base.GetLogger(name)
}
