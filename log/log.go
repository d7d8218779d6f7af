// Package log is a thin leveled logger over zerolog. A logger carries its
// attributes with it and travels through a context.Context, so every line of
// one invocation shares the same request id.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

//nolint:gochecknoglobals
var global atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits
func init() {
	l := zerolog.Nop()
	global.Store(&l)
}

// InitGlobals configures the process-wide logger and returns it.
func InitGlobals(level zerolog.Level, json, noColor bool) *zerolog.Logger {
	return initGlobals(os.Stderr, level, json, noColor)
}

func initGlobals(w io.Writer, level zerolog.Level, json, noColor bool) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true

	if !json {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    noColor,
			TimeFormat: "2006-01-02 15:04:05.000",
		}
	}

	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &l
	global.Store(&l)

	return &l
}

// Logger is a value type; With returns a new logger and leaves the receiver untouched.
type Logger struct {
	zl *zerolog.Logger
}

// New returns the global logger tagged with scope.
func New(scope string) Logger {
	l := global.Load().With().Str(scopeKey, scope).Logger()

	return Logger{zl: &l}
}

// Ctx returns the logger stored in ctx, or the global one.
func Ctx(ctx context.Context) Logger {
	l := zerolog.Ctx(ctx)
	if l == nil || l.GetLevel() == zerolog.Disabled {
		l = global.Load()
	}

	return Logger{zl: l}
}

func (l Logger) With(attrs ...Attr) Logger {
	c := l.zl.With()
	for _, attr := range attrs {
		c = attr(c)
	}

	zl := c.Logger()

	return Logger{zl: &zl}
}

func (l Logger) WithContext(ctx context.Context) context.Context {
	return l.zl.WithContext(ctx)
}

// Unwrap exposes the underlying zerolog logger.
func (l Logger) Unwrap() *zerolog.Logger {
	return l.zl
}

func (l Logger) Trace(msg string) {
	l.zl.Trace().Msg(msg)
}

func (l Logger) Tracef(format string, args ...any) {
	l.zl.Trace().Msgf(format, args...)
}

func (l Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

func (l Logger) Debugf(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

func (l Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

func (l Logger) Infof(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

func (l Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

func (l Logger) Warnf(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

// Error logs err at error level. An empty msg logs the error text alone.
func (l Logger) Error(err error, msg string) {
	l.zl.Error().Err(err).Msg(msg)
}

func (l Logger) Errorf(err error, format string, args ...any) {
	l.zl.Error().Err(err).Msg(fmt.Sprintf(format, args...))
}
