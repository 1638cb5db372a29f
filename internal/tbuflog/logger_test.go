package tbuflog

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestGetReturnsSameLoggerForSameName(t *testing.T) {
	t.Parallel()

	a := Get("test-logger-a")
	b := Get("test-logger-a")
	if a != b {
		t.Fatal("want the same *Logger instance for the same name")
	}
}

func TestSetLevelAppliesToExistingLoggers(t *testing.T) {
	t.Parallel()

	l := Get("test-logger-b")
	SetLevel(logrus.WarnLevel)
	if l.Level != logrus.WarnLevel {
		t.Fatalf("want WarnLevel, have %v", l.Level)
	}
}
