// Package progress defines the narrow interface through which long
// transfers report their advancement. The engine only calls it; how
// (and whether) anything is rendered is the caller's choice.
package progress

import "io"

// Reporter receives transfer progress. expected is a hint and may be
// zero when the source did not declare a length.
type Reporter interface {
	Update(done, expected int64, label string)
	Done()
}

// Nop discards all progress.
type Nop struct{}

func (Nop) Update(done, expected int64, label string) {}
func (Nop) Done()                                     {}

// Writer counts bytes written through it and forwards the running
// total to a Reporter.
type Writer struct {
	W        io.Writer
	Reporter Reporter
	Expected int64
	Label    string

	done int64
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.W.Write(p)
	w.done += int64(n)
	if w.Reporter != nil {
		w.Reporter.Update(w.done, w.Expected, w.Label)
	}
	return n, err
}
