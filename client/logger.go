package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Logger writes one line per notable event, each prefixed with an ISO-8601
// UTC timestamp and colorized by severity.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func NewLogger(out io.Writer) *Logger {
	return &Logger{out: out, now: time.Now}
}

var (
	infoColor    = color.New(color.FgWhite)
	warnColor    = color.New(color.FgHiYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
)

func (l *Logger) line(c *color.Color, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stamp := l.now().UTC().Format(time.RFC3339)
	fmt.Fprintf(l.out, "%s %s\n", stamp, c.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any)    { l.line(infoColor, format, args...) }
func (l *Logger) Warnf(format string, args ...any)    { l.line(warnColor, format, args...) }
func (l *Logger) Errorf(format string, args ...any)   { l.line(errorColor, format, args...) }
func (l *Logger) Successf(format string, args ...any) { l.line(successColor, format, args...) }

// Attempt is one booking submission, recorded to the history file as a JSON
// line when history is enabled.
type Attempt struct {
	At    time.Time `json:"at"`
	Date  string    `json:"date"`
	Time  string    `json:"time"`
	Error string    `json:"error,omitempty"`
}

// appendAttempt appends the attempt to the given file, creating it on first
// use.
func appendAttempt(path string, a Attempt) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}
