// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// LogLevel controls output verbosity.  It is the -v count.
type LogLevel int

const (
	LogQuiet LogLevel = iota
	LogNormal
	LogVerbose
	LogDebug
)

// class describes one kind of log message.
type class struct {
	tag   string
	need  LogLevel
	paint *color.Color
}

var (
	classError   = newClass("ERR", LogQuiet, color.FgRed, color.Bold)
	classWarn    = newClass("WRN", LogNormal, color.FgYellow)
	classInfo    = newClass("INF", LogNormal, color.FgBlue)
	classVerbose = newClass("VRB", LogVerbose, color.FgCyan)
	classDebug   = newClass("DBG", LogDebug, color.FgWhite)
)

// newClass builds a class whose colour is always rendered when asked
// for.  Whether to ask is decided per Logger, not by color.NoColor.
func newClass(tag string, need LogLevel, attrs ...color.Attribute) class {
	c := color.New(attrs...)
	c.EnableColor()
	return class{tag: "[" + tag + "]", need: need, paint: c}
}

// Logger writes levelled messages to stderr.  Stdout belongs to the
// relayed stream, so nothing is ever logged there.
type Logger struct {
	mu         sync.Mutex
	level      LogLevel
	out        io.Writer
	timestamps bool
	colored    bool
}

// NewLogger returns a Logger for the given -v count.  Timestamps are
// switched on from debug level up.
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level:      LogLevel(verbosity),
		out:        os.Stderr,
		timestamps: LogLevel(verbosity) >= LogDebug,
	}
}

func (l *Logger) SetTimestamps(on bool) { l.timestamps = on }
func (l *Logger) SetColor(on bool)      { l.colored = on }
func (l *Logger) SetOutput(w io.Writer) { l.out = w }
func (l *Logger) Level() LogLevel       { return l.level }

// Enabled reports whether messages needing lvl would be printed.
func (l *Logger) Enabled(lvl LogLevel) bool { return l.level >= lvl }

// Error is printed at every verbosity, including quiet.
func (l *Logger) Error(format string, args ...interface{}) { l.log(classError, format, args) }

func (l *Logger) Warn(format string, args ...interface{})    { l.log(classWarn, format, args) }
func (l *Logger) Info(format string, args ...interface{})    { l.log(classInfo, format, args) }
func (l *Logger) Verbose(format string, args ...interface{}) { l.log(classVerbose, format, args) }
func (l *Logger) Debug(format string, args ...interface{})   { l.log(classDebug, format, args) }

func (l *Logger) log(c class, format string, args []interface{}) {
	if !l.Enabled(c.need) {
		return
	}
	prefix := c.tag
	if l.colored {
		prefix = c.paint.Sprint(c.tag)
	}
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timestamps {
		fmt.Fprintf(l.out, "%s %s %s\n", time.Now().Format("15:04:05.000"), prefix, msg)
		return
	}
	fmt.Fprintf(l.out, "%s %s\n", prefix, msg)
}
