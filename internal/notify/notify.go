// Package notify carries human-facing progress, warning and error messages
// from job executions to whoever is watching.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Level is the severity of one notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is the structured payload of a notification.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Notifier accepts notifications. Delivery is fire-and-forget.
type Notifier interface {
	Notify(level Level, msg Message)
}

// Func adapts a plain function to Notifier.
type Func func(level Level, msg Message)

// Notify calls f.
func (f Func) Notify(level Level, msg Message) {
	if f != nil {
		f(level, msg)
	}
}

// Discard drops every notification.
var Discard Notifier = Func(nil)

// Multi fans one notification out to several notifiers in order.
func Multi(notifiers ...Notifier) Notifier {
	out := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return multi(out)
}

type multi []Notifier

func (m multi) Notify(level Level, msg Message) {
	for _, n := range m {
		n.Notify(level, msg)
	}
}

// Console writes colored notifications to a terminal-like writer.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	info *color.Color
	warn *color.Color
	err  *color.Color
}

// NewConsole creates a console notifier. Color is disabled automatically
// when w is not a terminal.
func NewConsole(w io.Writer) *Console {
	return &Console{
		w:    w,
		info: color.New(color.FgHiCyan),
		warn: color.New(color.FgHiYellow),
		err:  color.New(color.FgHiRed, color.Bold),
	}
}

// WithPrefix returns a notifier that tags every message with the given sample name.
func (c *Console) WithPrefix(prefix string) Notifier {
	return Func(func(level Level, msg Message) {
		c.write(prefix, level, msg)
	})
}

// Notify writes one notification.
func (c *Console) Notify(level Level, msg Message) {
	c.write("", level, msg)
}

func (c *Console) write(prefix string, level Level, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tag := c.colorFor(level).Sprintf("[%s]", level)
	if prefix != "" {
		tag = fmt.Sprintf("%s %s", tag, color.HiMagentaString(prefix))
	}
	if msg.Body == "" {
		fmt.Fprintf(c.w, "%s %s\n", tag, msg.Title)
		return
	}
	fmt.Fprintf(c.w, "%s %s: %s\n", tag, msg.Title, msg.Body)
}

func (c *Console) colorFor(level Level) *color.Color {
	switch level {
	case LevelWarning:
		return c.warn
	case LevelError:
		return c.err
	default:
		return c.info
	}
}
