package execution

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// TruncationMarker ends collected output that hit the size cap.
const TruncationMarker = "\n... [output truncated]"

// cappedBuffer collects output up to a byte limit.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       strings.Builder
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) WriteString(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return
	}
	if b.limit > 0 && b.buf.Len()+len(s) > b.limit {
		room := b.limit - b.buf.Len()
		// Do not split a rune at the cut.
		for room > 0 && !utf8.RuneStart(s[room]) {
			room--
		}
		b.buf.WriteString(s[:room])
		b.truncated = true
		return
	}
	b.buf.WriteString(s)
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return b.buf.String() + TruncationMarker
	}
	return b.buf.String()
}

// streamWriter turns writes on one process stream into OutputEvents.
// Incomplete UTF-8 sequences at the end of a write are held back until the
// next write or flush. A holding writer keeps all output until release or
// takeHeld.
type streamWriter struct {
	proc    *Process
	isError bool
	// capture receives the stream instead of the event channel.
	capture *strings.Builder
	// onOutput runs once, before the first chunk is delivered.
	onOutput func()

	mu      sync.Mutex
	pending []byte
	holding bool
	held    strings.Builder
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	data := append(w.pending, p...)
	cut := completePrefix(data)
	chunk := string(data[:cut])
	w.pending = append([]byte(nil), data[cut:]...)
	if w.holding {
		w.held.WriteString(chunk)
		w.mu.Unlock()
		return len(p), nil
	}
	notify := w.onOutput
	if chunk != "" {
		w.onOutput = nil
	}
	w.mu.Unlock()

	if notify != nil && chunk != "" {
		notify()
	}
	w.deliver(chunk)
	return len(p), nil
}

// flush emits any held-back bytes.
func (w *streamWriter) flush() {
	w.mu.Lock()
	chunk := string(w.pending)
	w.pending = nil
	if w.holding {
		w.held.WriteString(chunk)
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.deliver(chunk)
}

// release stops holding and emits what was held.
func (w *streamWriter) release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.holding {
		return
	}
	w.holding = false
	if chunk := w.held.String(); chunk != "" {
		w.held.Reset()
		w.proc.emit(chunk, w.isError)
	}
}

// takeHeld stops holding and returns the held output without emitting it.
func (w *streamWriter) takeHeld() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.holding = false
	chunk := w.held.String()
	w.held.Reset()
	return chunk
}

func (w *streamWriter) deliver(chunk string) {
	if chunk == "" {
		return
	}
	if w.capture != nil {
		w.mu.Lock()
		w.capture.WriteString(chunk)
		w.mu.Unlock()
		return
	}
	w.proc.emit(chunk, w.isError)
}

// completePrefix returns the length of the longest prefix of data that
// does not end inside a multi-byte rune.
func completePrefix(data []byte) int {
	n := len(data)
	// A rune is at most utf8.UTFMax bytes, so only the tail needs checking.
	for i := n - 1; i >= 0 && i >= n-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				return i
			}
			return n
		}
	}
	return n
}
