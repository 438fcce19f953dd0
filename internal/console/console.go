// Package console carries the short status lines shown to the player.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Console receives user-visible status lines.
type Console interface {
	PrintLine(line string)
}

// Log writes status lines to a zerolog logger at info level.
type Log struct {
	log *zerolog.Logger
}

// NewLog returns a Console backed by log.
func NewLog(log *zerolog.Logger) *Log {
	return &Log{log: log}
}

func (c *Log) PrintLine(line string) {
	c.log.Info().Str("console", line).Msg(line)
}

// Writer prints each line to w.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Console printing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (c *Writer) PrintLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

// Multi fans a line out to several consoles.
type Multi []Console

func (m Multi) PrintLine(line string) {
	for _, c := range m {
		c.PrintLine(line)
	}
}

// Func adapts a function to Console.
type Func func(line string)

func (f Func) PrintLine(line string) { f(line) }

// Recorder keeps every line. Used by tests and the status endpoint.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *Recorder) PrintLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Discard drops every line.
var Discard Console = Func(func(string) {})
