// Package logging provides the minimal structured-logging seam used across
// segbuf: a context-scoped Logger, module-qualified loggers, and a couple of
// small sinks for tests and simple programs.
package logging

import (
	"context"
	"fmt"
	"io"
)

// Logger is the logging interface every segbuf package depends on.
type Logger interface {
	Debugf(msg string, args ...interface{})
	Debugw(msg string, keyValues ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

// Factory builds a module-scoped Logger given a context.
type Factory func(ctx context.Context) Logger

type loggerContextKey struct{}

type contextLoggers struct {
	primary    Factory
	additional []Factory
}

// WithLogger attaches f as the primary logger factory for ctx, replacing any
// logger already set.
func WithLogger(ctx context.Context, f Factory) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, &contextLoggers{primary: f})
}

// WithAdditionalLogger attaches f as an extra logger factory for ctx; loggers
// built from ctx afterwards broadcast to every attached factory.
func WithAdditionalLogger(ctx context.Context, f Factory) context.Context {
	cl, _ := ctx.Value(loggerContextKey{}).(*contextLoggers)
	next := &contextLoggers{additional: []Factory{f}}

	if cl != nil {
		next.primary = cl.primary
		next.additional = append(append([]Factory{}, cl.additional...), f)
	}

	return context.WithValue(ctx, loggerContextKey{}, next)
}

// Module returns a Factory for the module called name that produces a
// Logger forwarding to whatever logger(s) are attached to the context it is
// invoked with; messages pass through unchanged, without name added. With
// no logger attached, it returns the null logger.
func Module(name string) Factory {
	return func(ctx context.Context) Logger {
		cl, _ := ctx.Value(loggerContextKey{}).(*contextLoggers)
		if cl == nil {
			return nullLogger{}
		}

		var loggers []Logger
		if cl.primary != nil {
			loggers = append(loggers, prefixed{name, cl.primary(ctx)})
		}

		for _, f := range cl.additional {
			loggers = append(loggers, prefixed{name, f(ctx)})
		}

		switch len(loggers) {
		case 0:
			return nullLogger{}
		case 1:
			return loggers[0]
		default:
			return Broadcast(loggers...)
		}
	}
}

type prefixed struct {
	name string
	Logger
}

// Broadcast returns a Logger that forwards every call to all of loggers, in
// order.
func Broadcast(loggers ...Logger) Logger {
	return broadcastLogger(loggers)
}

type broadcastLogger []Logger

func (b broadcastLogger) Debugf(msg string, args ...interface{}) {
	for _, l := range b {
		l.Debugf(msg, args...)
	}
}

func (b broadcastLogger) Debugw(msg string, kv ...interface{}) {
	for _, l := range b {
		l.Debugw(msg, kv...)
	}
}

func (b broadcastLogger) Infof(msg string, args ...interface{}) {
	for _, l := range b {
		l.Infof(msg, args...)
	}
}

func (b broadcastLogger) Warnf(msg string, args ...interface{}) {
	for _, l := range b {
		l.Warnf(msg, args...)
	}
}

func (b broadcastLogger) Errorf(msg string, args ...interface{}) {
	for _, l := range b {
		l.Errorf(msg, args...)
	}
}

type nullLogger struct{}

func (nullLogger) Debugf(string, ...interface{}) {}
func (nullLogger) Debugw(string, ...interface{}) {}
func (nullLogger) Infof(string, ...interface{})  {}
func (nullLogger) Warnf(string, ...interface{})  {}
func (nullLogger) Errorf(string, ...interface{}) {}

// ToWriter returns a Factory that writes every log line to w, one per call,
// ignoring the level. Intended for tests and small standalone programs.
func ToWriter(w io.Writer) Factory {
	return func(context.Context) Logger {
		return writerLogger{w}
	}
}

type writerLogger struct {
	w io.Writer
}

func (l writerLogger) Debugf(msg string, args ...interface{}) { l.line(msg, args...) }
func (l writerLogger) Infof(msg string, args ...interface{})  { l.line(msg, args...) }
func (l writerLogger) Warnf(msg string, args ...interface{})  { l.line(msg, args...) }
func (l writerLogger) Errorf(msg string, args ...interface{}) { l.line(msg, args...) }

func (l writerLogger) Debugw(msg string, kv ...interface{}) {
	fmt.Fprintf(l.w, "%s\t%s\n", msg, formatKV(kv))
}

func (l writerLogger) line(msg string, args ...interface{}) {
	fmt.Fprintf(l.w, "%s\n", fmt.Sprintf(msg, args...))
}

func formatKV(kv []interface{}) string {
	out := "{"

	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			out += ","
		}

		out += fmt.Sprintf("%q:%v", fmt.Sprint(kv[i]), formatValue(kv[i+1]))
	}

	return out + "}"
}

func formatValue(v interface{}) string {
	switch v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}
