package logx

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// Level represents a logging level
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var currentLevel atomic.Int32

var std = log.New(os.Stdout, "", log.LstdFlags)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// SetLevel sets the minimum level that will be logged
func SetLevel(level Level) {
	currentLevel.Store(int32(level))
}

func enabled(level Level) bool {
	return int32(level) >= currentLevel.Load()
}

func output(level Level, prefix, msg string) {
	if !enabled(level) {
		return
	}
	std.Println(prefix + msg)
}

func Debug(msg string) { output(LevelDebug, "DEBUG ", msg) }
func Info(msg string)  { output(LevelInfo, "INFO  ", msg) }
func Warn(msg string)  { output(LevelWarn, "WARN  ", msg) }
func Error(msg string) { output(LevelError, "ERROR ", msg) }

func Debugf(format string, args ...any) { Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { Error(fmt.Sprintf(format, args...)) }

// Fatal logs at error level and exits
func Fatal(msg string) {
	std.Println("FATAL " + msg)
	os.Exit(1)
}

func Fatalf(format string, args ...any) {
	Fatal(fmt.Sprintf(format, args...))
}

// Fields carries structured context for an Entry
type Fields map[string]any

// Entry is a logger with attached fields
type Entry struct {
	fields Fields
}

// WithFields returns an entry that prefixes every message with the fields
func WithFields(fields Fields) *Entry {
	return &Entry{fields: fields}
}

func (e *Entry) format(msg string) string {
	if len(e.fields) == 0 {
		return msg
	}

	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	b.WriteString(" |")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.fields[k])
	}
	return b.String()
}

func (e *Entry) Debug(msg string) { output(LevelDebug, "DEBUG ", e.format(msg)) }
func (e *Entry) Info(msg string)  { output(LevelInfo, "INFO  ", e.format(msg)) }
func (e *Entry) Warn(msg string)  { output(LevelWarn, "WARN  ", e.format(msg)) }
func (e *Entry) Error(msg string) { output(LevelError, "ERROR ", e.format(msg)) }

func (e *Entry) Debugf(format string, args ...any) { e.Debug(fmt.Sprintf(format, args...)) }
func (e *Entry) Infof(format string, args ...any)  { e.Info(fmt.Sprintf(format, args...)) }
func (e *Entry) Warnf(format string, args ...any)  { e.Warn(fmt.Sprintf(format, args...)) }
func (e *Entry) Errorf(format string, args ...any) { e.Error(fmt.Sprintf(format, args...)) }
