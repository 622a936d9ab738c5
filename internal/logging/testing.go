package logging

import (
	"reflect"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry, down to TraceLevel, for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: observed,
	}
}

func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// AssertLogged fails unless an entry at level contains msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if len(t.matching(level, msg)) == 0 {
		tb.Errorf("expected log at %v containing %q, logs: %+v", level, msg, t.observed.All())
	}
}

// AssertNotLogged fails if an entry at level contains msg.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if n := len(t.matching(level, msg)); n > 0 {
		tb.Errorf("unexpected %d logs at %v containing %q", n, level, msg)
	}
}

// AssertStage fails unless an entry containing msg was logged inside the
// named pipeline stage.
func (t *TestLogger) AssertStage(tb testing.TB, stage, msg string) {
	tb.Helper()
	for _, e := range t.observed.All() {
		if strings.Contains(e.Message, msg) && e.ContextMap()[stageKey] == stage {
			return
		}
	}
	tb.Errorf("no log containing %q in stage %q", msg, stage)
}

// AssertField fails unless an entry with message msg carries key=expected.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected any) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		for _, f := range e.Context {
			if f.Key != key {
				continue
			}
			switch {
			case f.Type == zapcore.StringType && f.String == expected:
				return
			case f.Type == zapcore.Int64Type && int(f.Integer) == expected:
				return
			case reflect.DeepEqual(f.Interface, expected):
				return
			}
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

// urlCredentials matches a URL password that was not masked by Endpoint.
var urlCredentials = regexp.MustCompile(`://[^/\s:@]*:([^@\s]+)@`)

// AssertNoCredentials fails if any message or string field exposes the
// password of a database, cache or Pushgateway URL.
func (t *TestLogger) AssertNoCredentials(tb testing.TB) {
	tb.Helper()
	check := func(where, s string) {
		for _, m := range urlCredentials.FindAllStringSubmatch(s, -1) {
			if m[1] != "xxxxx" {
				tb.Errorf("credentials in %s: %q", where, s)
			}
		}
	}
	for _, e := range t.observed.All() {
		check("message", e.Message)
		for _, f := range e.Context {
			if f.Type == zapcore.StringType {
				check("field "+f.Key, f.String)
			}
		}
	}
}

func (t *TestLogger) matching(level zapcore.Level, msg string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, msg) {
			out = append(out, e)
		}
	}
	return out
}
