// Package log wraps logrus with a context-aware, key/value call signature,
// matching the convention the rest of this codebase expects:
// log.Info(ctx, "message", "key", value, "key2", value2).
package log

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

type ctxKey string

const fieldsKey ctxKey = "log_fields"

var root = logrus.New()

func init() {
	root.SetOutput(os.Stderr)
	root.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   term.IsTerminal(int(os.Stderr.Fd())),
	})
	root.SetLevel(logrus.InfoLevel)
}

// SetLevel configures the minimum severity that reaches the output.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		root.Warnf("invalid log level %q, keeping %s", level, root.GetLevel())
		return
	}
	root.SetLevel(lvl)
}

// SetOutput redirects where log lines are written, used by tests.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}

// NewContext attaches key/value pairs to ctx so every subsequent log call
// made with the returned context carries them automatically.
func NewContext(ctx context.Context, kv ...interface{}) context.Context {
	return context.WithValue(ctx, fieldsKey, mergeFields(ctx, kv))
}

func mergeFields(ctx context.Context, kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	if existing, ok := ctx.Value(fieldsKey).(logrus.Fields); ok {
		for k, v := range existing {
			fields[k] = v
		}
	}
	return applyPairs(fields, kv)
}

func applyPairs(fields logrus.Fields, kv []interface{}) logrus.Fields {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}

func entry(ctx context.Context, kv []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	if ctx != nil {
		if existing, ok := ctx.Value(fieldsKey).(logrus.Fields); ok {
			for k, v := range existing {
				fields[k] = v
			}
		}
	}
	fields = applyPairs(fields, kv)
	return root.WithFields(fields)
}

func Debug(ctx context.Context, msg string, kv ...interface{}) {
	entry(ctx, kv).Debug(msg)
}

func Info(ctx context.Context, msg string, kv ...interface{}) {
	entry(ctx, kv).Info(msg)
}

func Warn(ctx context.Context, msg string, args ...interface{}) {
	err, kv := splitErr(args)
	e := entry(ctx, kv)
	if err != nil {
		e = e.WithError(err)
	}
	e.Warn(msg)
}

// Error logs msg, optionally accepting an error as the first variadic
// argument (log.Error(ctx, "failed", err, "key", value)).
func Error(ctx context.Context, msg string, args ...interface{}) {
	err, kv := splitErr(args)
	e := entry(ctx, kv)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

func Fatal(ctx context.Context, msg string, args ...interface{}) {
	err, kv := splitErr(args)
	e := entry(ctx, kv)
	if err != nil {
		e = e.WithError(err)
	}
	e.Fatal(msg)
}

func splitErr(args []interface{}) (error, []interface{}) {
	if len(args) == 0 {
		return nil, args
	}
	if err, ok := args[0].(error); ok {
		return err, args[1:]
	}
	return nil, args
}
