package logging

import (
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the time format of log lines.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// An Appender is an output of a logger. Appenders see every entry the logger's level lets
// through.
type Appender interface {
	zapcore.Core
}

// newLineEncoder returns the encoder of human readable log lines: time, level, logger name,
// caller, message, then the fields as JSON.
func newLineEncoder(inUTC bool) zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		FunctionKey:   zapcore.OmitKey,
		MessageKey:    "msg",
		StacktraceKey: "stacktrace",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			if inUTC {
				t = t.UTC()
			}
			enc.AppendString(t.Format(DefaultTimeFormatStr))
		},
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})
}

// NewStdoutAppender returns an appender writing log lines to stdout in UTC.
func NewStdoutAppender() Appender {
	return zapcore.NewCore(newLineEncoder(true), zapcore.Lock(os.Stdout), zapcore.DebugLevel)
}

// FileAppender writes log lines in UTC to a size-rotated file.
type FileAppender struct {
	zapcore.Core
	out *lumberjack.Logger
}

// NewFileAppender returns an appender writing to filename. The file is rotated once it reaches
// maxSizeMB, and at most maxBackups rotated files are kept.
func NewFileAppender(filename string, maxSizeMB, maxBackups int) *FileAppender {
	out := &lumberjack.Logger{Filename: filename, MaxSize: maxSizeMB, MaxBackups: maxBackups}
	return &FileAppender{
		Core: zapcore.NewCore(newLineEncoder(true), zapcore.AddSync(out), zapcore.DebugLevel),
		out:  out,
	}
}

// Close closes the current log file.
func (appender *FileAppender) Close() error {
	return appender.out.Close()
}
