package logging

import (
	"context"

	"go.opencensus.io/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl is a sugared logger over the tee of its appenders. Appenders are added while setting
// up, before the logger is shared.
type impl struct {
	*zap.SugaredLogger

	name      string
	level     zap.AtomicLevel
	appenders []Appender
}

func newImpl(name string, level Level, appenders ...Appender) *impl {
	imp := &impl{name: name, level: zap.NewAtomicLevelAt(level), appenders: appenders}
	imp.build()
	return imp
}

func (imp *impl) build() {
	cores := make([]zapcore.Core, 0, len(imp.appenders))
	for _, appender := range imp.appenders {
		cores = append(cores, appender)
	}
	core := levelFilter{Core: zapcore.NewTee(cores...), level: imp.level}
	imp.SugaredLogger = zap.New(core, zap.AddCaller()).Sugar().Named(imp.name)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level)
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
	imp.build()
}

// Sublogger returns a logger named "<name>.<subname>" sharing the appenders. Its level starts
// at the current level and changes independently afterwards.
func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	appenders := append([]Appender(nil), imp.appenders...)
	return newImpl(name, imp.level.Level(), appenders...)
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if !imp.level.Enabled(DEBUG) {
		return
	}
	if span := trace.FromContext(ctx); span != nil {
		keysAndValues = append(keysAndValues[:len(keysAndValues):len(keysAndValues)],
			"trace_id", span.SpanContext().TraceID.String())
	}
	imp.SugaredLogger.WithOptions(zap.AddCallerSkip(1)).Debugw(msg, keysAndValues...)
}

// levelFilter drops entries below level before they reach the appenders.
type levelFilter struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (f levelFilter) Enabled(l zapcore.Level) bool {
	return f.level.Enabled(l) && f.Core.Enabled(l)
}

func (f levelFilter) Level() zapcore.Level {
	return f.level.Level()
}

func (f levelFilter) With(fields []zapcore.Field) zapcore.Core {
	return levelFilter{Core: f.Core.With(fields), level: f.level}
}

func (f levelFilter) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !f.level.Enabled(entry.Level) {
		return checked
	}
	return f.Core.Check(entry, checked)
}
