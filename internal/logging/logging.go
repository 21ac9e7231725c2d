// Package logging configures the application wide slog loggers.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system with structured and human-readable loggers.
// Structured logs go to stdout as JSON, human-readable logs to stderr as text.
func Init(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	initHandlers(os.Stdout, os.Stderr, level)
}

// SetOutput redirects logger output, e.g. to a rotating file.
func SetOutput(structuredOutput, humanReadableOutput io.Writer, level slog.Level) {
	initHandlers(structuredOutput, humanReadableOutput, level)
}

// FileWriter returns a size-rotated log writer for the given path.
func FileWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}
}

func initHandlers(structuredOutput, humanReadableOutput io.Writer, level slog.Level) {
	structuredHandler := slog.NewJSONHandler(structuredOutput, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	structuredLogger = slog.New(structuredHandler)

	humanReadableHandler := slog.NewTextHandler(humanReadableOutput, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	humanReadableLogger = slog.New(humanReadableHandler)

	slog.SetDefault(structuredLogger)
}

// Structured returns the JSON logger.
func Structured() *slog.Logger {
	if structuredLogger == nil {
		Init(false)
	}
	return structuredLogger
}

// HumanReadable returns the text logger.
func HumanReadable() *slog.Logger {
	if humanReadableLogger == nil {
		Init(false)
	}
	return humanReadableLogger
}

// ForModule returns the structured logger scoped to a module name.
func ForModule(name string) *slog.Logger {
	return Structured().With("module", name)
}
