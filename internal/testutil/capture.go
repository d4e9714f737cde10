package testutil

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

// CaptureLogger records log output so tests can assert on warnings.
type CaptureLogger struct {
	*slog.Logger
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewCaptureLogger returns a debug-level logger backed by an in-memory buffer.
func NewCaptureLogger() *CaptureLogger {
	c := &CaptureLogger{}
	c.Logger = slog.New(slog.NewTextHandler(captureWriter{c}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return c
}

// String returns everything logged so far.
func (c *CaptureLogger) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Contains reports whether any logged line contains substr.
func (c *CaptureLogger) Contains(substr string) bool {
	return strings.Contains(c.String(), substr)
}

type captureWriter struct{ c *CaptureLogger }

func (w captureWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.c.buf.Write(p)
}
