// Package grinlog is a small leveled logger. It exists so call sites can
// write grinlog.E.F("...", args) / grinlog.I.Ln("...") without dragging in a full
// structured logging framework for a service this size.
package grinlog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
)

var current atomic.Int64

func init() { current.Store(int64(Info)) }

// SetLogLevel sets the global verbosity. Lines more verbose than the current
// level are dropped before formatting.
func SetLogLevel(s string) { current.Store(int64(ParseLevel(s))) }

func enabled(l Level) bool { return l <= Level(current.Load()) }

// Logger is a single level's logging surface.
type Logger struct {
	level  Level
	colour *color.Color
	std    *log.Logger
}

func newLogger(l Level, c *color.Color) *Logger {
	return &Logger{level: l, colour: c, std: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)}
}

// F formats and logs a line, nostr/orly style: one call site, printf verbs.
func (l *Logger) F(format string, args ...any) {
	if !enabled(l.level) {
		return
	}
	prefix := l.colour.Sprintf("[%s]", l.level)
	l.std.Printf("%s %s", prefix, fmt.Sprintf(format, args...))
	if l.level == Fatal {
		os.Exit(1)
	}
}

// Ln logs its arguments space-joined, like log.Println.
func (l *Logger) Ln(args ...any) {
	if !enabled(l.level) {
		return
	}
	prefix := l.colour.Sprintf("[%s]", l.level)
	l.std.Printf("%s %s", prefix, fmt.Sprintln(args...))
	if l.level == Fatal {
		os.Exit(1)
	}
}

// S dumps one or more values with %+v, for ad-hoc structure inspection.
func (l *Logger) S(args ...any) {
	if !enabled(l.level) {
		return
	}
	for _, a := range args {
		l.F("%+v", a)
	}
}

// C logs the lazily-computed result of fn, avoiding the cost of building an
// expensive trace string when the level is not enabled.
func (l *Logger) C(fn func() string) {
	if !enabled(l.level) {
		return
	}
	l.F("%s", fn())
}

var (
	F = newLogger(Fatal, color.New(color.FgHiRed, color.Bold))
	E = newLogger(Error, color.New(color.FgRed))
	W = newLogger(Warn, color.New(color.FgYellow))
	I = newLogger(Info, color.New(color.FgCyan))
	D = newLogger(Debug, color.New(color.FgBlue))
	T = newLogger(Trace, color.New(color.FgMagenta))
)
