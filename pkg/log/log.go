// Copyright 2018 ETH Zurich
// Copyright 2021 ETH Zurich, Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides a thin, structured-context wrapper around zap. All
// components log through the Logger interface rather than a package-level
// function, so that a context-scoped logger (see CtxWith/FromCtx) can carry
// request-specific fields without any global mutable state.
package log

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/theojepsen/nuevomatch/pkg/private/serrors"
)

// Span wraps a Logger with a tracing span, so that a logger pulled from a
// traced context can still be used as a plain Logger while the span stays
// reachable for callers that need it (e.g. to add tags or finish it).
type Span struct {
	Logger
	opentracing.Span
}

// Level is the logging level, aliasing zapcore's so callers never need to
// import zap directly just to compare levels.
type Level zapcore.Level

// The supported log levels, ordered least to most severe.
const (
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
)

// Default tuning values for Config, mirroring a conservative production
// rotation policy: keep a week of logs, cap each file at 50 MiB.
const (
	DefaultConsoleLevel = "info"
	DefaultFileLevel    = "info"
	DefaultFileSizeMiB  = 50
	DefaultFileMaxAge   = 7
	DefaultMaxBackups   = 5
)

func (l Level) String() string {
	return zapcore.Level(l).String()
}

// LevelFromString parses a level name, accepting the usual zap spellings
// plus "crit" as an alias for error (kept for config-file compatibility).
func LevelFromString(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "error", "crit", "critical":
		return ErrorLevel, nil
	default:
		return InfoLevel, serrors.New("unknown log level", "level", s)
	}
}

// Logger is the logging contract every package depends on. New derives a
// child logger with additional structured context baked in; Debug/Info/
// Error each take a message and an optional flat key/value context list
// (e.g. Info("classified batch", "size", n, "hits", hits)).
type Logger interface {
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Enabled(lvl Level) bool
}

type logger struct {
	logger *zap.Logger
}

var _ Logger = (*logger)(nil)

// New creates a logger with the given flat key/value context, derived from
// the current global zap logger.
func New(ctx ...any) Logger {
	return &logger{logger: zap.L().With(convertCtx(ctx)...)}
}

func (l *logger) New(ctx ...any) Logger {
	return &logger{logger: l.logger.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...any) { l.logger.Debug(msg, convertCtx(ctx)...) }
func (l *logger) Info(msg string, ctx ...any)  { l.logger.Info(msg, convertCtx(ctx)...) }
func (l *logger) Error(msg string, ctx ...any) { l.logger.Error(msg, convertCtx(ctx)...) }

func (l *logger) Enabled(lvl Level) bool {
	return l.logger.Core().Enabled(zapcore.Level(lvl))
}

// WithOptions lets context.go's attachSpan add a caller-skip frame when a
// tracing span wraps this logger, without exposing zap to every caller.
func (l *logger) WithOptions(opts ...zap.Option) Logger {
	return &logger{logger: l.logger.WithOptions(opts...)}
}

func convertCtx(ctx []any) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			key = fmt.Sprint(ctx[i])
		}
		fields = append(fields, zap.Any(key, ctx[i+1]))
	}
	return fields
}

var (
	rootMu sync.RWMutex
	root   Logger = &logger{logger: zap.NewNop()}
)

// Root returns the process-wide root logger. It is never nil.
func Root() Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// SetRoot replaces the process-wide root logger, e.g. after Setup.
func SetRoot(l Logger) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root = l
}

// Config controls where and at what level the root logger writes. It
// mirrors the split between a human-facing console stream and a rotated
// file stream that the classifier's operators expect from every component.
type Config struct {
	Console struct {
		// Level is the minimum level written to stderr (defaults to "info").
		Level string
		// Format selects "console" (human) or "json" encoding.
		Format string
	}
	File struct {
		// Path is the log file location. Empty disables file logging.
		Path string
		// Level is the minimum level written to the file (defaults to "info").
		Level string
		// SizeMiB is the max size per file before rotation.
		SizeMiB int
		// MaxAgeDays is the max age of a rotated file before deletion.
		MaxAgeDays int
		// MaxBackups is the max number of rotated files retained.
		MaxBackups int
	}
}

func (cfg *Config) setDefaults() {
	if cfg.Console.Level == "" {
		cfg.Console.Level = DefaultConsoleLevel
	}
	if cfg.Console.Format == "" {
		cfg.Console.Format = "console"
	}
	if cfg.File.Level == "" {
		cfg.File.Level = DefaultFileLevel
	}
	if cfg.File.SizeMiB == 0 {
		cfg.File.SizeMiB = DefaultFileSizeMiB
	}
	if cfg.File.MaxAgeDays == 0 {
		cfg.File.MaxAgeDays = DefaultFileMaxAge
	}
	if cfg.File.MaxBackups == 0 {
		cfg.File.MaxBackups = DefaultMaxBackups
	}
}

// Setup builds the root logger from cfg and installs it via SetRoot. It
// fans out to stderr and, if File.Path is set, to a lumberjack-rotated file,
// each at its own level.
func Setup(cfg Config) error {
	cfg.setDefaults()

	consoleLevel, err := LevelFromString(cfg.Console.Level)
	if err != nil {
		return serrors.WrapStr("parsing console log level", err)
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if cfg.Console.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.Level(consoleLevel)),
	}

	if cfg.File.Path != "" {
		fileLevel, err := LevelFromString(cfg.File.Level)
		if err != nil {
			return serrors.WrapStr("parsing file log level", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.SizeMiB,
			MaxAge:     cfg.File.MaxAgeDays,
			MaxBackups: cfg.File.MaxBackups,
		}
		fileEncoder := zapcore.NewJSONEncoder(encoderCfg)
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), zapcore.Level(fileLevel)))
	}

	zl := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	zap.ReplaceGlobals(zl)
	SetRoot(&logger{logger: zl})
	return nil
}

// HandlePanic recovers a panic on the calling goroutine, logs it with a
// stack trace at error level through Root, and re-panics. It must be called
// via defer at the top of every goroutine the classifier spawns (worker
// pipelines, background rebuilds), since an unrecovered panic on a
// non-main goroutine otherwise crashes the whole process silently as far
// as the logs are concerned.
func HandlePanic() {
	if msg := recover(); msg != nil {
		Root().Error("goroutine panicked", "panic", msg, "stack", string(debug.Stack()))
		panic(msg)
	}
}
