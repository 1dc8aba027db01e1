// Package console wraps the standard output and error of the process.
package console

import (
	"bytes"
	"io"
	"sync"

	"golang.org/x/term"
)

// defaultTermWidth is used when the terminal width can't be determined.
const defaultTermWidth = 80

// Writer syncs writes with a mutex and, if the output is a TTY, clears the
// rest of the line before newlines.
type Writer struct {
	RawOut io.Writer
	Mutex  *sync.Mutex
	Writer io.Writer
	IsTTY  bool
}

// Write writes p, translating newlines if the output is a TTY.
func (w *Writer) Write(p []byte) (n int, err error) {
	origLen := len(p)
	if w.IsTTY {
		// Add a TTY code to erase till the end of line with each new line
		p = bytes.ReplaceAll(p, []byte{'\n'}, []byte{'\x1b', '[', '0', 'K', '\n'})
	}

	w.Mutex.Lock()
	n, err = w.Writer.Write(p)
	w.Mutex.Unlock()

	if err != nil && n < origLen {
		return n, err
	}
	return origLen, err
}

type fder interface {
	Fd() uintptr
}

// TermWidth returns the width of the terminal the writer writes to, or
// defaultTermWidth if that's not a terminal.
func (w *Writer) TermWidth() int {
	f, ok := w.RawOut.(fder)
	if !w.IsTTY || !ok {
		return defaultTermWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultTermWidth
	}
	return width
}
