package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Settings stores config for Logger
type Settings struct {
	Path       string `yaml:"path"`
	Name       string `yaml:"name"`
	Ext        string `yaml:"ext"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
}

const defaultCallerSkip = 1

// DefaultLogger is used by the package level functions
var DefaultLogger = NewStdoutLogger(zapcore.InfoLevel)

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

// NewStdoutLogger creates a logger which prints to stdout
func NewStdoutLogger(level zapcore.Level) *zap.SugaredLogger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stdout), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(defaultCallerSkip)).Sugar()
}

// NewFileLogger creates a logger which prints to stdout and a rotated log file
func NewFileLogger(settings *Settings) (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	if settings.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(settings.Level))); err != nil {
			return nil, fmt.Errorf("bad log level %q: %v", settings.Level, err)
		}
	}
	encoder := zapcore.NewConsoleEncoder(encoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}
	if settings.Path != "" {
		if err := os.MkdirAll(settings.Path, 0755); err != nil {
			return nil, fmt.Errorf("create log dir failed: %v", err)
		}
		ext := strings.TrimPrefix(settings.Ext, ".")
		if ext == "" {
			ext = "log"
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(settings.Path, settings.Name+"."+ext),
			MaxSize:    settings.MaxSizeMB,
			MaxBackups: settings.MaxBackups,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(defaultCallerSkip)).Sugar(), nil
}

// Setup initializes DefaultLogger
func Setup(settings *Settings) {
	logger, err := NewFileLogger(settings)
	if err != nil {
		panic(err)
	}
	DefaultLogger = logger
}

// Sync flushes buffered entries
func Sync() {
	_ = DefaultLogger.Sync()
}

// Debug logs debug message through DefaultLogger
func Debug(v ...interface{}) {
	DefaultLogger.Debug(v...)
}

// Debugf logs debug message through DefaultLogger
func Debugf(format string, v ...interface{}) {
	DefaultLogger.Debugf(format, v...)
}

// Info logs message through DefaultLogger
func Info(v ...interface{}) {
	DefaultLogger.Info(v...)
}

// Infof logs message through DefaultLogger
func Infof(format string, v ...interface{}) {
	DefaultLogger.Infof(format, v...)
}

// Warn logs warning message through DefaultLogger
func Warn(v ...interface{}) {
	DefaultLogger.Warn(v...)
}

// Warnf logs warning message through DefaultLogger
func Warnf(format string, v ...interface{}) {
	DefaultLogger.Warnf(format, v...)
}

// Error logs error message through DefaultLogger
func Error(v ...interface{}) {
	DefaultLogger.Error(v...)
}

// Errorf logs error message through DefaultLogger
func Errorf(format string, v ...interface{}) {
	DefaultLogger.Errorf(format, v...)
}

// Fatal prints error message then stop the program
func Fatal(v ...interface{}) {
	DefaultLogger.Fatal(v...)
}
