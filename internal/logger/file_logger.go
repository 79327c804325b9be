// Package logger writes the human-readable trading session log. One file
// per session under the log directory, with leveled lines; structured
// machine-readable records go through the journal package instead.
package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level tags a log line by severity or kind.
type Level string

const (
	LevelInfo   Level = "INFO"
	LevelWarn   Level = "WARN"
	LevelError  Level = "ERROR"
	LevelTrade  Level = "TRADE"
	LevelStatus Level = "STATUS"
)

// Logger is a mutex-guarded session log file.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	logger  *log.Logger
	session string
}

// New opens (or creates) the session log file under dir, named by the
// session label and the current date.
func New(dir, session string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("logger: create log directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.log", session, time.Now().UTC().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file: %w", err)
	}

	l := &Logger{
		file:    file,
		logger:  log.New(file, "", 0),
		session: session,
	}
	l.header()
	return l, nil
}

func (l *Logger) header() {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := strings.Repeat("=", 72)
	l.logger.Println(line)
	l.logger.Printf("SESSION %s STARTED %s", l.session, time.Now().UTC().Format(time.RFC3339))
	l.logger.Println(line)
}

func (l *Logger) write(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("[%s] [%-6s] %s",
		time.Now().UTC().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any)   { l.write(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)   { l.write(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any)  { l.write(LevelError, format, args...) }
func (l *Logger) Trade(format string, args ...any)  { l.write(LevelTrade, format, args...) }
func (l *Logger) Status(format string, args ...any) { l.write(LevelStatus, format, args...) }

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
