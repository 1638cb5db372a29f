// Package tbuflog provides the named, leveled loggers tracebufd uses for
// anomaly and lifecycle logging. It is not
// meant for the trace data path — nothing the buffer does for every
// packet should go through here.
package tbuflog

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	loggers = map[string]*Logger{}
)

// Logger is a named logrus logger with a fixed one-line-per-entry format:
//
//	2026/08/06 15:04:05.000000 tracebufd[1234] <INFO>: listening on :8080
type Logger struct {
	logrus.Logger
	name string
}

func (l *Logger) Format(e *logrus.Entry) ([]byte, error) {
	const timeFormat = "2006/01/02 15:04:05.000000"

	line := fmt.Sprintf("%s %s[%d] <%s>: %s",
		e.Time.Format(timeFormat),
		l.name,
		os.Getpid(),
		strings.ToUpper(e.Level.String()),
		e.Message)

	if len(e.Data) != 0 {
		line += fmt.Sprintf(" %v", e.Data)
	}
	line += "\n"

	return []byte(line), nil
}

func newLogger(name string) *Logger {
	l := &Logger{name: name}
	l.Out = os.Stderr
	l.Formatter = l
	l.Level = logrus.InfoLevel
	l.Hooks = make(logrus.LevelHooks)
	return l
}

// Get returns the logger registered under name, creating it with
// logrus.InfoLevel on first use. The same name always returns the same
// *Logger, so callers across packages share one set of handles.
func Get(name string) *Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[name]; ok {
		return l
	}
	l := newLogger(name)
	loggers[name] = l
	return l
}

// SetLevel sets the level on every logger created so far through Get.
// Loggers created afterward still start at logrus.InfoLevel.
func SetLevel(lvl logrus.Level) {
	mu.Lock()
	defer mu.Unlock()

	for _, l := range loggers {
		l.Level = lvl
	}
}
