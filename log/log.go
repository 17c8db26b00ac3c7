// Package log is a small, contextual leveled logger in the style of
// go-ethereum's log15 wrapper, which the teacher constructs with calls
// like log.New("database", "in-memory") (ethdb/memory_database.go).
// Ctx is a flat slice of alternating key/value pairs.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level orders log verbosity, most severe first.
type Level int

const (
	LvlCrit Level = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Level) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "???"
	}
}

// Ctx is a list of alternating key/value pairs appended to every record
// emitted by a Logger built with that context.
type Ctx []interface{}

// Logger emits leveled, contextual records to a single writer. Safe for
// concurrent use; organizers and the store log from multiple goroutines.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	color  bool
	ctx    Ctx
	minLvl Level
}

var root = New()

// New builds a Logger with the given context, writing to stderr. Colors
// are enabled when stderr is a real terminal, matching the teacher's
// go-isatty/go-colorable pairing.
func New(ctx ...interface{}) *Logger {
	isTerm := isatty.IsTerminal(os.Stderr.Fd())
	return &Logger{
		out:    colorable.NewColorableStderr(),
		color:  isTerm,
		ctx:    append(Ctx{}, ctx...),
		minLvl: LvlInfo,
	}
}

// Root returns the process-wide default logger.
func Root() *Logger { return root }

// SetLevel changes the minimum level this logger emits.
func (l *Logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLvl = lvl
}

// New derives a child logger, appending extra context.
func (l *Logger) New(ctx ...interface{}) *Logger {
	child := &Logger{out: l.out, color: l.color, minLvl: l.minLvl}
	child.ctx = append(append(Ctx{}, l.ctx...), ctx...)
	return child
}

func (l *Logger) log(lvl Level, msg string, ctx Ctx) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl > l.minLvl {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	levelStr := lvl.String()
	if l.color {
		levelStr = colorize(lvl, levelStr)
	}
	fmt.Fprintf(l.out, "%s [%s] %s", ts, levelStr, msg)
	all := append(append(Ctx{}, l.ctx...), ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", all[i], all[i+1])
	}
	fmt.Fprintln(l.out)
}

func colorize(lvl Level, s string) string {
	switch lvl {
	case LvlCrit, LvlError:
		return aurora.Red(s).String()
	case LvlWarn:
		return aurora.Yellow(s).String()
	case LvlDebug, LvlTrace:
		return aurora.Faint(s).String()
	default:
		return aurora.Cyan(s).String()
	}
}

func (l *Logger) Crit(msg string, ctx ...interface{})  { l.log(LvlCrit, msg, ctx) }
func (l *Logger) Error(msg string, ctx ...interface{}) { l.log(LvlError, msg, ctx) }
func (l *Logger) Warn(msg string, ctx ...interface{})  { l.log(LvlWarn, msg, ctx) }
func (l *Logger) Info(msg string, ctx ...interface{})  { l.log(LvlInfo, msg, ctx) }
func (l *Logger) Debug(msg string, ctx ...interface{}) { l.log(LvlDebug, msg, ctx) }
func (l *Logger) Trace(msg string, ctx ...interface{}) { l.log(LvlTrace, msg, ctx) }

func Info(msg string, ctx ...interface{})  { root.log(LvlInfo, msg, ctx) }
func Warn(msg string, ctx ...interface{})  { root.log(LvlWarn, msg, ctx) }
func Error(msg string, ctx ...interface{}) { root.log(LvlError, msg, ctx) }
func Debug(msg string, ctx ...interface{}) { root.log(LvlDebug, msg, ctx) }
