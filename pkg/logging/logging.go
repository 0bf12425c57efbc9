// Package logging provides structured logging for zstack-macpool.
//
// A zap core sits behind a logr.Logger, so the controller manager, klog and
// the pool service all write through one sink with one adjustable level.
//
// Usage:
//
//	logger, err := logging.NewLogger(logging.Options{
//	    Level:  "info",
//	    Format: "json",
//	})
//	logger.Info("Pool built", "pool", "default", "size", 4096)
//	logger.Error(err, "Failed to parse range", "start", start)
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// OutputStderr selects standard error as the log destination.
const OutputStderr = "stderr"

// Options configures NewLogger. Empty Level and Format mean info and json.
type Options struct {
	Level  string
	Format string

	// OutputPath is a file path or OutputStderr; stdout when empty.
	OutputPath string
	// Output overrides OutputPath.
	Output io.Writer

	Development bool
	AddCaller   bool
	CallerSkip  int
}

// DefaultOptions returns info-level JSON on stdout with caller info.
func DefaultOptions() Options {
	return Options{
		Level:      LevelInfo,
		Format:     FormatJSON,
		AddCaller:  true,
		CallerSkip: 1,
	}
}

// Logger is a zap logger and its logr view. Loggers derived with WithName
// or WithValues share the level of their parent.
type Logger struct {
	zapLogger   *zap.Logger
	atomicLevel zap.AtomicLevel
	logr        logr.Logger
}

var (
	globalLogger  atomic.Value
	initOnce      sync.Once
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// NewLogger builds a logger. It fails on an unknown level or format, or an
// output file that cannot be opened.
func NewLogger(opts Options) (*Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	atomicLevel := zap.NewAtomicLevelAt(level)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch opts.Format {
	case FormatText:
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case FormatJSON, "":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	output, err := openOutput(opts)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, output, atomicLevel)

	zapOpts := []zap.Option{}
	if opts.AddCaller {
		zapOpts = append(zapOpts, zap.AddCaller())
		if opts.CallerSkip > 0 {
			zapOpts = append(zapOpts, zap.AddCallerSkip(opts.CallerSkip))
		}
	}
	if opts.Development {
		zapOpts = append(zapOpts, zap.Development())
	}

	zapLogger := zap.New(core, zapOpts...)

	return &Logger{
		zapLogger:   zapLogger,
		atomicLevel: atomicLevel,
		logr:        zapr.NewLogger(zapLogger),
	}, nil
}

func openOutput(opts Options) (zapcore.WriteSyncer, error) {
	switch {
	case opts.Output != nil:
		return zapcore.AddSync(opts.Output), nil
	case opts.OutputPath == OutputStderr:
		return zapcore.Lock(os.Stderr), nil
	case opts.OutputPath != "":
		file, err := os.OpenFile(opts.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", opts.OutputPath, err)
		}
		return zapcore.AddSync(file), nil
	default:
		return zapcore.Lock(os.Stdout), nil
	}
}

// parseLevel parses a string log level to zapcore.Level.
// An empty level means info.
func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case LevelInfo, "":
		return zapcore.InfoLevel, nil
	case LevelWarn:
		return zapcore.WarnLevel, nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// ValidLevel reports whether level is an accepted log level name.
func ValidLevel(level string) bool {
	_, err := parseLevel(level)
	return err == nil
}

// SetLevel changes the level of l and every logger derived from it.
func (l *Logger) SetLevel(level string) error {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return err
	}

	l.atomicLevel.SetLevel(zapLevel)
	return nil
}

// Logger returns the logr view, for ctrl.SetLogger and klog.SetLogger.
func (l *Logger) Logger() logr.Logger {
	return l.logr
}

func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		zapLogger:   l.zapLogger.Named(name),
		atomicLevel: l.atomicLevel,
		logr:        l.logr.WithName(name),
	}
}

func (l *Logger) WithValues(keysAndValues ...interface{}) *Logger {
	return &Logger{
		zapLogger:   l.zapLogger.With(toZapFields(keysAndValues)...),
		atomicLevel: l.atomicLevel,
		logr:        l.logr.WithValues(keysAndValues...),
	}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logr.V(1).Info(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logr.Info(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	// logr has no warn level
	l.zapLogger.Warn(msg, toZapFields(keysAndValues)...)
}

func (l *Logger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logr.Error(err, msg, keysAndValues...)
}

func (l *Logger) Sync() error {
	return l.zapLogger.Sync()
}

// toZapFields converts key-value pairs to zap fields.
// Pairs with a non-string key are dropped.
func toZapFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		}
	}
	return fields
}

// InitGlobalLogger sets the global logger. Only the first call has effect.
func InitGlobalLogger(opts Options) error {
	var initErr error
	initOnce.Do(func() {
		logger, err := NewLogger(opts)
		if err != nil {
			initErr = err
			return
		}
		globalLogger.Store(logger)
	})
	return initErr
}

// GetGlobalLogger returns the global logger instance.
// Before InitGlobalLogger it returns a shared info-level JSON logger on stdout.
func GetGlobalLogger() *Logger {
	if l := globalLogger.Load(); l != nil {
		return l.(*Logger)
	}
	defaultOnce.Do(func() {
		defaultLogger, _ = NewLogger(DefaultOptions())
	})
	return defaultLogger
}

func SetGlobalLogLevel(level string) error {
	return GetGlobalLogger().SetLevel(level)
}

// L is short for GetGlobalLogger.
func L() *Logger {
	return GetGlobalLogger()
}
