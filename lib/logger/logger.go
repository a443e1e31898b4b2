package logger

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Level is the severity of a log record
type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelFlags = []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

var (
	std      = log.New(os.Stdout, "", log.LstdFlags)
	minLevel = int32(INFO)
)

// SetLevel sets the minimum level that will be written
func SetLevel(level Level) {
	atomic.StoreInt32(&minLevel, int32(level))
}

func output(level Level, v ...interface{}) {
	if int32(level) < atomic.LoadInt32(&minLevel) {
		return
	}
	std.Output(3, "["+levelFlags[level]+"] "+fmt.Sprintln(v...))
	if level == FATAL {
		os.Exit(1)
	}
}

// Debug logs a debug message
func Debug(v ...interface{}) {
	output(DEBUG, v...)
}

// Info logs an info message
func Info(v ...interface{}) {
	output(INFO, v...)
}

// Warn logs a warning message
func Warn(v ...interface{}) {
	output(WARN, v...)
}

// Error logs an error message
func Error(v ...interface{}) {
	output(ERROR, v...)
}

// Fatal logs a message then exits the process
func Fatal(v ...interface{}) {
	output(FATAL, v...)
}
