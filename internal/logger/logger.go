// Package logger builds the zerolog logger shared by the engine and CLI.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

type LogBuild struct {
	writer  io.Writer
	path    string
	level   string
	console bool
}

type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{}
}

// FromPath appends to the file at path instead of writing to the writer.
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromWriter(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// WithLevel sets the minimum level by name (debug, info, warn, error).
// An empty name means warn.
func (build *LogBuild) WithLevel(level string) *LogBuild {
	build.level = level
	return build
}

// Console renders human-readable lines instead of JSON. Ignored for files.
func (build *LogBuild) Console(on bool) *LogBuild {
	build.console = on
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	level := zerolog.WarnLevel
	if build.level != "" {
		level, err = zerolog.ParseLevel(build.level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", build.level, err)
		}
	}

	logData = new(LogData)
	writer := build.writer
	if writer == nil {
		writer = os.Stderr
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		writer = zerolog.SyncWriter(logData.LogFile)
	} else if build.console {
		writer = zerolog.ConsoleWriter{Out: writer, NoColor: true}
	}

	logData.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logData, nil
}

// Close closes the log file, if any.
func (d *LogData) Close() error {
	if d == nil || d.LogFile == nil {
		return nil
	}
	return d.LogFile.Close()
}
