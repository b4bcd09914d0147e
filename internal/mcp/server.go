package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/logging"
	"github.com/zmcp/civicrm-mcp/internal/transport"
)

// JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ErrInvalidParams marks handler errors caused by the caller's arguments.
// Wrap it to report -32602 instead of a generic execution failure.
var ErrInvalidParams = errors.New("invalid params")

// InvalidParams returns an error wrapping ErrInvalidParams
func InvalidParams(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

// Tool represents an MCP tool
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolHandler is a function that handles tool execution
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Request represents an incoming MCP request
type Request struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      interface{}            `json:"id"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Server represents an MCP server
type Server struct {
	name            string
	version         string
	protocolVersion string
	tools           map[string]*Tool
	toolOrder       []string // Maintains insertion order
	handlers        map[string]ToolHandler
	transport       transport.Transport
	ctx             context.Context
	cancel          context.CancelFunc
	mu              sync.RWMutex
	initialized     bool
}

// NewServer creates a new MCP server
func NewServer(name, version string) *Server {
	// Keep the standard logger off stdout
	log.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		name:            name,
		version:         version,
		protocolVersion: constants.MCPProtocolVersion,
		tools:           make(map[string]*Tool),
		toolOrder:       make([]string, 0),
		handlers:        make(map[string]ToolHandler),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// AddTool registers a new tool with the server
func (s *Server) AddTool(tool *Tool, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tools[tool.Name]; !exists {
		s.toolOrder = append(s.toolOrder, tool.Name)
	}

	s.tools[tool.Name] = tool
	s.handlers[tool.Name] = handler
}

// GetTools returns all registered tools in insertion order
func (s *Server) GetTools() []*Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]*Tool, 0, len(s.tools))
	for _, name := range s.toolOrder {
		if tool, exists := s.tools[name]; exists {
			tools = append(tools, tool)
		}
	}
	return tools
}

// IsInitialized reports whether the client has sent the initialized notification
func (s *Server) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// SetTransport sets the transport for the server
func (s *Server) SetTransport(t transport.Transport) {
	s.transport = t
}

// Run starts the MCP server and blocks until the transport stops
func (s *Server) Run() error {
	if s.transport == nil {
		return fmt.Errorf("transport not set")
	}
	return s.transport.Start(s.ctx)
}

// Stop stops the MCP server
func (s *Server) Stop() {
	s.cancel()
}

// HandleMessage processes incoming transport messages
func (s *Server) HandleMessage(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	if msg.JSONRPC != "2.0" {
		return s.createErrorResponse(msg.ID, CodeInvalidRequest, "Invalid Request", "JSON-RPC version must be 2.0"), nil
	}

	req := &Request{
		JSONRPC: msg.JSONRPC,
		ID:      msg.ID,
		Method:  msg.Method,
		Params:  make(map[string]interface{}),
	}

	if len(msg.Params) > 0 && string(msg.Params) != "null" {
		var params map[string]interface{}
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.createErrorResponse(msg.ID, CodeParseError, "Parse error", err.Error()), nil
		}
		if params != nil {
			req.Params = params
		}
	}

	// Notifications get no response
	if req.Method == "initialized" || req.Method == "notifications/initialized" {
		s.handleInitialized()
		return nil, nil
	}
	if strings.HasPrefix(req.Method, "notifications/") {
		logging.Debug("MCP", "Ignoring notification %s", req.Method)
		return nil, nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "resources/list":
		return s.createResponse(req.ID, map[string]interface{}{"resources": []interface{}{}})
	case "prompts/list":
		return s.createResponse(req.ID, map[string]interface{}{"prompts": []interface{}{}})
	case "ping":
		return s.createResponse(req.ID, map[string]interface{}{})
	default:
		return s.createErrorResponse(req.ID, CodeMethodNotFound, "Method not found", req.Method), nil
	}
}

// normalizeID converts a null or missing id to 0 for clients that reject null
func normalizeID(id interface{}) json.RawMessage {
	switch v := id.(type) {
	case json.RawMessage:
		if string(v) == "null" || len(v) == 0 {
			return json.RawMessage("0")
		}
		return v
	case nil:
		return json.RawMessage("0")
	default:
		idBytes, err := json.Marshal(id)
		if err != nil {
			return json.RawMessage("0")
		}
		return idBytes
	}
}

// createErrorResponse creates an error response message
func (s *Server) createErrorResponse(id interface{}, code int, message string, data interface{}) *transport.Message {
	resp := &transport.Message{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Error: &transport.Error{
			Code:    code,
			Message: message,
		},
	}
	if data != nil {
		if dataBytes, err := json.Marshal(data); err == nil {
			resp.Error.Data = dataBytes
		}
	}
	return resp
}

// createResponse creates a success response message
func (s *Server) createResponse(id interface{}, result interface{}) (*transport.Message, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	return &transport.Message{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Result:  resultBytes,
	}, nil
}

func (s *Server) handleInitialize(req *Request) (*transport.Message, error) {
	s.mu.RLock()
	protocolVersion := s.protocolVersion
	s.mu.RUnlock()

	result := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"prompts": map[string]interface{}{
				"listChanged": false,
			},
			"resources": map[string]interface{}{
				"listChanged": false,
				"subscribe":   false,
			},
			"tools": map[string]interface{}{
				"listChanged": false,
			},
		},
		"protocolVersion": protocolVersion,
		"serverInfo": map[string]interface{}{
			"name":    s.name,
			"version": s.version,
		},
	}

	return s.createResponse(req.ID, result)
}

func (s *Server) handleInitialized() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

func (s *Server) handleToolsList(req *Request) (*transport.Message, error) {
	return s.createResponse(req.ID, map[string]interface{}{
		"tools": s.GetTools(),
	})
}

// handleToolsCall dispatches to the tool handler. This is the single place
// handler errors are converted into JSON-RPC errors.
func (s *Server) handleToolsCall(ctx context.Context, req *Request) (*transport.Message, error) {
	name, ok := req.Params["name"].(string)
	if !ok || name == "" {
		return s.createErrorResponse(req.ID, CodeInvalidParams, "Invalid params", "Missing tool name"), nil
	}

	args, ok := req.Params["arguments"].(map[string]interface{})
	if !ok {
		args = make(map[string]interface{})
	}

	s.mu.RLock()
	handler, exists := s.handlers[name]
	s.mu.RUnlock()

	if !exists {
		return s.createErrorResponse(req.ID, CodeMethodNotFound, "Method not found", fmt.Sprintf("Unknown tool: %s", name)), nil
	}

	result, err := handler(ctx, args)
	if err != nil {
		code, message := categorizeError(err)
		logging.Debug("MCP", "Tool %s failed: %v", name, err)
		return s.createErrorResponse(req.ID, code, message, map[string]string{
			"tool":           name,
			"original_error": err.Error(),
		}), nil
	}

	text, ok := result.(string)
	if !ok {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode tool result: %w", err)
		}
		text = string(data)
	}

	return s.createResponse(req.ID, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": text,
			},
		},
	})
}

// categorizeError maps a handler error to a JSON-RPC code and message
func categorizeError(err error) (int, string) {
	if errors.Is(err, ErrInvalidParams) {
		return CodeInvalidParams, "Invalid params: " + strings.TrimPrefix(err.Error(), ErrInvalidParams.Error()+": ")
	}
	return CodeInternalError, "Tool execution failed: " + err.Error()
}
