// Package mudlog builds the server's zap logger: console output on stderr,
// an optional rolling log file, and a level that can be flipped to debug at
// runtime.
package mudlog

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	File  string // rolling log file; empty = stderr only
	Debug bool

	// Console overrides stderr, mainly for tests.
	Console io.Writer
}

// Logger is a SugaredLogger with a runtime-adjustable level.
type Logger struct {
	*zap.SugaredLogger
	level zap.AtomicLevel
	file  *lumberjack.Logger
}

// New creates a logger.
func New(opts Options) *Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	encoder := zapcore.NewConsoleEncoder(encCfg)

	var console io.Writer = os.Stderr
	if opts.Console != nil {
		console = opts.Console
	}
	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(console), level)}

	l := &Logger{level: level}
	if opts.File != "" {
		// 10MB per file, 3 backups, 7 days.
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(l.file), level))
	}

	l.SugaredLogger = zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar()
	return l
}

// SetDebug enables or disables debug logging.
func (l *Logger) SetDebug(on bool) {
	if on {
		l.level.SetLevel(zapcore.DebugLevel)
		l.Debugf("Debug logging enabled")
		return
	}
	l.level.SetLevel(zapcore.InfoLevel)
}

// IsDebug returns whether debug logging is currently enabled.
func (l *Logger) IsDebug() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

// Close flushes buffered entries and closes the log file.
func (l *Logger) Close() error {
	_ = l.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
