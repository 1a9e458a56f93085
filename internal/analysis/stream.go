package analysis

import (
	"bytes"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrStreamClosed is returned by writes to a sealed StreamBuffer.
var ErrStreamClosed = errors.New("analysis: stream buffer closed")

// StreamBuffer is an append-only accumulator for one output stream of one
// engine invocation. Chunks are appended in the order Write is called.
type StreamBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	chunks int
	closed bool
}

// Write appends p. It never short-writes.
func (b *StreamBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrStreamClosed
	}
	b.chunks++
	return b.buf.Write(p)
}

// Close seals the buffer; later writes fail.
func (b *StreamBuffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Closed reports whether Close has been called.
func (b *StreamBuffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Bytes returns a copy of everything written so far.
func (b *StreamBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// Len returns the number of bytes written.
func (b *StreamBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Chunks returns the number of writes appended.
func (b *StreamBuffer) Chunks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chunks
}

// maxMirrorLine caps how much of an unterminated line the mirror holds
// before logging it as is.
const maxMirrorLine = 64 << 10

// logMirror forwards complete diagnostic lines to the operational log as
// they arrive. A trailing partial line is emitted by Flush; a line longer
// than maxMirrorLine is logged in pieces.
type logMirror struct {
	logger  *zap.Logger
	pending []byte
}

func newLogMirror(logger *zap.Logger) *logMirror {
	return &logMirror{logger: logger}
}

// Write always reports len(p) so an io.MultiWriter never stops feeding the
// diagnostic buffer because of the mirror.
func (m *logMirror) Write(p []byte) (int, error) {
	m.pending = append(m.pending, p...)
	for {
		i := bytes.IndexByte(m.pending, '\n')
		if i < 0 {
			break
		}
		m.emit(m.pending[:i])
		m.pending = m.pending[i+1:]
	}
	for len(m.pending) >= maxMirrorLine {
		m.emit(m.pending[:maxMirrorLine])
		m.pending = m.pending[maxMirrorLine:]
	}
	if len(m.pending) == 0 {
		m.pending = nil
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (m *logMirror) Flush() {
	if len(m.pending) > 0 {
		m.emit(m.pending)
		m.pending = nil
	}
}

func (m *logMirror) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	m.logger.Warn("engine stderr", zap.ByteString("line", line))
}
