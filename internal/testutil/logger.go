package testutil

import (
	"fmt"
	"sync"

	"subtree-go/internal/subtree"
)

// CaptureLogger records every log call so tests can assert on them.
type CaptureLogger struct {
	mu    sync.Mutex
	lines []string
}

var _ subtree.Logger = (*CaptureLogger)(nil)

func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{}
}

func (l *CaptureLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := level + "\t" + msg
	for i := 0; i+1 < len(args); i += 2 {
		line += fmt.Sprintf("\t%v=%v", args[i], args[i+1])
	}
	l.lines = append(l.lines, line)
}

func (l *CaptureLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args) }
func (l *CaptureLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args) }
func (l *CaptureLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args) }
func (l *CaptureLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args) }

// Lines returns a copy of everything logged so far.
func (l *CaptureLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}
