// Package logging wires zap behind controller-runtime's logr delegation.
package logging

import (
	"context"

	"github.com/go-logr/logr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// atomicLevel 由 InitSetupLogging 创建的 logger 共享，之后只改级别
var atomicLevel = uberzap.NewAtomicLevelAt(zapcore.InfoLevel)

// InitSetupLogging installs the process logger before flags are parsed.
func InitSetupLogging() {
	logger := zap.New(zap.Level(atomicLevel), zap.RawZapOpts(uberzap.AddCaller()))
	ctrl.SetLogger(logger)
}

// InitLogging applies the parsed zap options. When no zap level was given the
// -v verbosity decides it.
func InitLogging(opts *zap.Options, verbosity int, levelFlagSet bool) {
	if !levelFlagSet {
		opts.Level = uberzap.NewAtomicLevelAt(VerbosityLevel(verbosity))
	}
	if opts.Level == nil {
		return
	}
	switch lvl := opts.Level.(type) {
	case uberzap.AtomicLevel:
		atomicLevel.SetLevel(lvl.Level())
	case zapcore.Level:
		atomicLevel.SetLevel(lvl)
	}
}

// VerbosityLevel maps a logr verbosity to the zap level that enables it.
func VerbosityLevel(verbosity int) zapcore.Level {
	if verbosity < 0 {
		verbosity = 0
	}
	if verbosity > 127 {
		verbosity = 127
	}
	return zapcore.Level(int8(-verbosity))
}

// CurrentLevel is the level loggers from InitSetupLogging run at.
func CurrentLevel() zapcore.Level {
	return atomicLevel.Level()
}

// NewTestLogger creates a new Zap logger using the dev mode.
func NewTestLogger() logr.Logger {
	return zap.New(
		zap.UseDevMode(true),
		zap.Level(uberzap.NewAtomicLevelAt(zapcore.Level(-1*TRACE))),
		zap.RawZapOpts(uberzap.AddCaller()),
	)
}

func NewTestLoggerIntoContext(ctx context.Context) context.Context {
	return log.IntoContext(ctx, NewTestLogger())
}
