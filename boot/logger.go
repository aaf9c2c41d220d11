package boot

import (
	"fmt"
	"log"
	"strings"
)

// Logger is an optional logging interface for the engine.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// StdLogger writes to the standard library logger with a "[boot]" prefix.
// Debug lines are only printed when Verbose is set.
type StdLogger struct {
	Verbose bool
}

func (l StdLogger) Debug(msg string, kv ...interface{}) {
	if l.Verbose {
		log.Printf("[boot] DEBUG %s%s", msg, formatKV(kv))
	}
}

func (l StdLogger) Info(msg string, kv ...interface{}) {
	log.Printf("[boot] %s%s", msg, formatKV(kv))
}

func (l StdLogger) Error(msg string, kv ...interface{}) {
	log.Printf("[boot] ERROR %s%s", msg, formatKV(kv))
}

func formatKV(kv []interface{}) string {
	if len(kv) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			fmt.Fprintf(&sb, " %v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&sb, " %v", kv[i])
		}
	}
	return sb.String()
}
