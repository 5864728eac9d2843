// Package xlog is the leveled, key-value structured logger every other
// package logs through, in the call shape erigon-lib/log/v3 uses
// throughout erigon (log.Info(msg, "key", val,...)). It is a thin
// wrapper over the real ecosystem ancestor of that package, log15.
package xlog

import (
	"os"

	"github.com/inconshreveable/log15"
)

// Logger is a leveled, key-value sink. New(ctx...) returns a child logger
// with ctx permanently attached to every record it emits.
type Logger interface {
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
}

type logger struct{ l log15.Logger }

func (g *logger) Debug(msg string, ctx ...interface{}) { g.l.Debug(msg, ctx...) }
func (g *logger) Info(msg string, ctx ...interface{}) { g.l.Info(msg, ctx...) }
func (g *logger) Warn(msg string, ctx ...interface{}) { g.l.Warn(msg, ctx...) }
func (g *logger) Error(msg string, ctx ...interface{}) { g.l.Error(msg, ctx...) }
func (g *logger) New(ctx ...interface{}) Logger { return &logger{l: g.l.New(ctx...)} }

var root = &logger{l: log15.Root()}

func init() {
	root.l.SetHandler(log15.StreamHandler(os.Stderr, log15.TerminalFormat()))
}

// New returns a child of the root logger with ctx attached.
func New(ctx ...interface{}) Logger { return root.New(ctx...) }

// Package-level convenience functions mirror erigon's global log.Info/
// log.Warn/log.Error call sites.
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{}) { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{}) { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }

// SetVerbosity adjusts the minimum level that reaches the handler.
func SetVerbosity(lvl log15.Lvl) {
	root.l.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.TerminalFormat())))
}
