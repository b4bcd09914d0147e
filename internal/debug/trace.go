package debug

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TraceLogger writes one JSON object per line describing MCP traffic
type TraceLogger struct {
	mu        sync.Mutex
	out       io.Writer
	closer    io.Closer
	filename  string
	sessionID string
}

// NewTraceLogger creates a trace file in the OS temp directory
func NewTraceLogger() (*TraceLogger, error) {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("civicrm_mcp_trace_%s.log", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}

	logger := NewTraceWriter(file)
	logger.closer = file
	logger.filename = filename
	return logger, nil
}

// NewTraceWriter traces to an arbitrary writer
func NewTraceWriter(w io.Writer) *TraceLogger {
	logger := &TraceLogger{
		out:       w,
		sessionID: uuid.NewString(),
	}
	logger.Log("TRACE", "Trace logging started", map[string]interface{}{
		"pid": os.Getpid(),
	})
	return logger
}

// Log writes a trace entry
func (t *TraceLogger) Log(level, message string, data interface{}) {
	if t == nil || t.out == nil {
		return
	}

	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"session":   t.sessionID,
		"level":     level,
		"message":   message,
	}
	if data != nil {
		entry["data"] = data
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s\n", line)
	if f, ok := t.out.(*os.File); ok {
		f.Sync()
	}
}

// LogError logs an error with context
func (t *TraceLogger) LogError(context string, err error, data interface{}) {
	t.Log("ERROR", context, map[string]interface{}{
		"error": err.Error(),
		"data":  data,
	})
}

// SessionID identifies this process in trace output
func (t *TraceLogger) SessionID() string {
	return t.sessionID
}

// GetFilename returns the trace filename, empty when tracing to a writer
func (t *TraceLogger) GetFilename() string {
	return t.filename
}

// Close closes the trace file
func (t *TraceLogger) Close() error {
	if t == nil {
		return nil
	}
	t.Log("TRACE", "Trace logging stopped", nil)
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
