package logging_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segbuf/segbuf/logging"
)

func printfLogger(emit func(string, ...interface{})) logging.Factory {
	return func(context.Context) logging.Logger {
		return testLogger{emit}
	}
}

type testLogger struct {
	emit func(string, ...interface{})
}

func (l testLogger) Debugf(msg string, args ...interface{}) { l.emit(msg, args...) }
func (l testLogger) Infof(msg string, args ...interface{})  { l.emit(msg, args...) }
func (l testLogger) Warnf(msg string, args ...interface{})  { l.emit(msg, args...) }
func (l testLogger) Errorf(msg string, args ...interface{}) { l.emit(msg, args...) }
func (l testLogger) Debugw(msg string, kv ...interface{})   { l.emit(msg) }

func TestModuleNullLogger(t *testing.T) {
	l := logging.Module("mod1")(context.Background())
	require.NotPanics(t, func() {
		l.Debugf("A")
		l.Infof("B")
		l.Warnf("C")
		l.Errorf("D")
	})
}

func TestWithLogger(t *testing.T) {
	var lines []string

	ctx := logging.WithLogger(context.Background(), printfLogger(func(msg string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(msg, args...))
	}))

	l := logging.Module("mod1")(ctx)
	l.Infof("hello %d", 1)

	require.Equal(t, []string{"hello 1"}, lines)
}

func TestWithAdditionalLogger(t *testing.T) {
	var a, b []string

	ctx := logging.WithLogger(context.Background(), printfLogger(func(msg string, args ...interface{}) {
		a = append(a, fmt.Sprintf(msg, args...))
	}))
	ctx = logging.WithAdditionalLogger(ctx, printfLogger(func(msg string, args ...interface{}) {
		b = append(b, fmt.Sprintf(msg, args...))
	}))

	l := logging.Module("mod1")(ctx)
	l.Infof("hi")

	require.Equal(t, []string{"hi"}, a)
	require.Equal(t, []string{"hi"}, b)
}

func TestToWriter(t *testing.T) {
	var buf bytes.Buffer

	l := logging.ToWriter(&buf)(context.Background())
	l.Infof("A")
	l.Errorf("B")

	require.Equal(t, "A\nB\n", buf.String())
}
