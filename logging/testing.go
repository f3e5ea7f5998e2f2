package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// testWriter hands each log line to the test, so it shows up under the test that logged it.
type testWriter struct {
	tb testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.tb.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// NewTestAppender returns an appender logging to tb in local time.
func NewTestAppender(tb testing.TB) Appender {
	return zapcore.NewCore(newLineEncoder(false), zapcore.AddSync(testWriter{tb}), zapcore.DebugLevel)
}
