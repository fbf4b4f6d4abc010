// Package logger provides leveled logging for the analysis shell.
// Core statistical packages never log; only the pipeline and the CLI do.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel maps a config string to a Level. Unknown values fall back to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger provides leveled logging.
type Logger struct {
	level  Level
	json   bool
	logger *log.Logger
}

type entry struct {
	Time  string `json:"time"`
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

var defaultLogger *Logger

// Init initializes the default logger writing to stderr.
func Init(level string, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter initializes the default logger writing to w.
// The "text" format prefixes a UTC timestamp and file:line; "json" writes one
// object per line with time, level and msg.
func InitWriter(w io.Writer, level string, format string) {
	l := &Logger{level: ParseLevel(level)}
	if strings.ToLower(format) == "json" {
		l.json = true
		l.logger = log.New(w, "", 0)
	} else {
		l.logger = log.New(w, "", log.LstdFlags|log.Lmicroseconds|log.LUTC|log.Lshortfile)
	}
	defaultLogger = l
}

func output(l Level, format string, args ...interface{}) {
	if defaultLogger == nil || defaultLogger.level > l {
		return
	}
	if defaultLogger.json {
		b, err := json.Marshal(entry{
			Time:  time.Now().UTC().Format(time.RFC3339Nano),
			Level: l.String(),
			Msg:   fmt.Sprintf(format, args...),
		})
		if err == nil {
			_ = defaultLogger.logger.Output(3, string(b))
		}
		return
	}
	msg := fmt.Sprintf("["+l.String()+"] "+format, args...)
	_ = defaultLogger.logger.Output(3, msg)
}

func Debug(format string, args ...interface{}) { output(DebugLevel, format, args...) }

func Info(format string, args ...interface{}) { output(InfoLevel, format, args...) }

func Warn(format string, args ...interface{}) { output(WarnLevel, format, args...) }

func Error(format string, args ...interface{}) { output(ErrorLevel, format, args...) }
