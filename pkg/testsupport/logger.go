package testsupport

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jmalloc/twelf/src/twelf"
)

// Logger is a twelf.Logger that keeps its output in memory.
type Logger struct {
	// Debugging enables Debug output.
	Debugging bool

	mu    sync.Mutex
	lines []string
}

var _ twelf.Logger = (*Logger)(nil)

// Log implements twelf.Logger.
func (l *Logger) Log(f string, v ...interface{}) {
	l.LogString(fmt.Sprintf(f, v...))
}

// LogString implements twelf.Logger.
func (l *Logger) LogString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

// Debug implements twelf.Logger.
func (l *Logger) Debug(f string, v ...interface{}) {
	if l.Debugging {
		l.Log(f, v...)
	}
}

// DebugString implements twelf.Logger.
func (l *Logger) DebugString(s string) {
	if l.Debugging {
		l.LogString(s)
	}
}

// IsDebug implements twelf.Logger.
func (l *Logger) IsDebug() bool {
	return l.Debugging
}

// Lines returns everything logged so far.
func (l *Logger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Contains reports whether any line contains substr.
func (l *Logger) Contains(substr string) bool {
	for _, line := range l.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
