package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/zmcp/civicrm-mcp/internal/debug"
	"github.com/zmcp/civicrm-mcp/internal/logging"
	"github.com/zmcp/civicrm-mcp/internal/transport"
)

// StdioTransport implements the Transport interface for line-delimited JSON over stdio.
// Messages are handled one at a time, in arrival order.
type StdioTransport struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
	handler transport.Handler
	tracer  *debug.TraceLogger
}

// New creates a new stdio transport
func New(handler transport.Handler) *StdioTransport {
	return NewWithIO(handler, os.Stdin, os.Stdout)
}

// NewWithIO creates a transport over arbitrary streams
func NewWithIO(handler transport.Handler, in io.Reader, out io.Writer) *StdioTransport {
	return &StdioTransport{
		reader:  bufio.NewReader(in),
		writer:  out,
		handler: handler,
	}
}

// SetTracer sets the trace logger
func (t *StdioTransport) SetTracer(tracer *debug.TraceLogger) {
	t.tracer = tracer
}

// Start processes messages until EOF or ctx is cancelled
func (t *StdioTransport) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := t.ReadMessage()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			logging.Debug("Stdio", "Skipping unreadable message: %v", err)
			continue
		}
		if msg == nil || msg.Method == "" || t.handler == nil {
			continue
		}

		response, err := t.handler(ctx, msg)
		if err != nil {
			response = transport.InternalError(msg.ID, err)
		}
		if response == nil {
			continue
		}
		if err := t.WriteMessage(response); err != nil {
			logging.Error("Stdio", err, "Failed to write response")
		}
	}
}

// ReadMessage reads a line-delimited JSON message. Blank lines yield (nil, nil).
func (t *StdioTransport) ReadMessage() (*transport.Message, error) {
	line, err := t.reader.ReadBytes('\n')
	if err != nil && (err != io.EOF || len(bytes.TrimSpace(line)) == 0) {
		return nil, err
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	t.tracer.Log("TRANSPORT_IN", "Raw message received", map[string]interface{}{
		"raw":  string(line),
		"size": len(line),
	})

	var msg transport.Message
	if err := json.Unmarshal(line, &msg); err != nil {
		t.tracer.LogError("Failed to unmarshal message", err, map[string]interface{}{
			"raw": string(line),
		})
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	t.tracer.Log("TRANSPORT_PARSED", "Message parsed", map[string]interface{}{
		"method":     msg.Method,
		"id":         msg.ID,
		"has_params": len(msg.Params) > 0,
	})

	return &msg, nil
}

// WriteMessage writes a JSON message followed by a newline
func (t *StdioTransport) WriteMessage(msg *transport.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		t.tracer.LogError("Failed to marshal message", err, msg)
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	t.tracer.Log("TRANSPORT_OUT", "Sending message", map[string]interface{}{
		"id":        msg.ID,
		"has_error": msg.Error != nil,
		"size":      len(data),
	})

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.writer.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// Close closes the transport (no-op for stdio)
func (t *StdioTransport) Close() error {
	return nil
}
