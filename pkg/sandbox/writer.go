package sandbox

import (
	"bytes"
	"io"
	"sync"
)

// switchWriter is the session's standard-output channel. The interpreter is
// wired to it once at construction; each execution temporarily points it at
// a private buffer and restores the previous target afterwards, so capture
// is a scoped acquire/release rather than a global mutable switch.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newSwitchWriter() *switchWriter {
	return &switchWriter{w: io.Discard}
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	w := s.w
	s.mu.Unlock()
	return w.Write(p)
}

// capture points the writer at a fresh buffer and returns it together with a
// restore func that reinstates the previous target. Restore is safe to call
// exactly once, on every exit path.
func (s *switchWriter) capture() (*bytes.Buffer, func()) {
	buf := &bytes.Buffer{}
	s.mu.Lock()
	prev := s.w
	s.w = buf
	s.mu.Unlock()
	return buf, func() {
		s.mu.Lock()
		s.w = prev
		s.mu.Unlock()
	}
}
