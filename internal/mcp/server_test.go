package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/civicrm-mcp/internal/transport"
)

func newTestServer() *Server {
	s := NewServer("test-server", "0.0.1")
	s.AddTool(&Tool{Name: "echo", Description: "echo", InputSchema: map[string]interface{}{"type": "object"}},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return fmt.Sprintf("hello %v", args["name"]), nil
		})
	s.AddTool(&Tool{Name: "bad_args", InputSchema: map[string]interface{}{"type": "object"}},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return nil, InvalidParams("unknown custom field %q", "Nope")
		})
	s.AddTool(&Tool{Name: "remote_fail", InputSchema: map[string]interface{}{"type": "object"}},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return nil, errors.New(`CiviCRM API error (HTTP 500): "quoted" failure`)
		})
	s.AddTool(&Tool{Name: "structured", InputSchema: map[string]interface{}{"type": "object"}},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return map[string]int{"count": 2}, nil
		})
	return s
}

func call(t *testing.T, s *Server, id int, method string, params interface{}) *transport.Message {
	t.Helper()
	msg := &transport.Message{JSONRPC: "2.0", ID: json.RawMessage(fmt.Sprint(id)), Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		msg.Params = data
	}
	resp, err := s.HandleMessage(context.Background(), msg)
	require.NoError(t, err)
	return resp
}

func TestInitialize(t *testing.T) {
	s := newTestServer()
	resp := call(t, s, 1, "initialize", map[string]interface{}{"protocolVersion": "2024-11-05"})
	require.Nil(t, resp.Error)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	info := result["serverInfo"].(map[string]interface{})
	assert.Equal(t, "test-server", info["name"])
	assert.Equal(t, "0.0.1", info["version"])
}

func TestInitializedNotification(t *testing.T) {
	s := newTestServer()
	assert.False(t, s.IsInitialized())

	resp, err := s.HandleMessage(context.Background(), &transport.Message{JSONRPC: "2.0", Method: "notifications/initialized"})
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.True(t, s.IsInitialized())

	resp, err = s.HandleMessage(context.Background(), &transport.Message{JSONRPC: "2.0", Method: "notifications/cancelled"})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestToolsListKeepsInsertionOrder(t *testing.T) {
	s := newTestServer()
	resp := call(t, s, 2, "tools/list", nil)

	var result struct {
		Tools []Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 4)
	assert.Equal(t, "echo", result.Tools[0].Name)
	assert.Equal(t, "structured", result.Tools[3].Name)
}

func TestToolsCallSuccess(t *testing.T) {
	s := newTestServer()
	resp := call(t, s, 3, "tools/call", map[string]interface{}{
		"name":      "echo",
		"arguments": map[string]interface{}{"name": "Jane"},
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, json.RawMessage("3"), resp.ID)

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.Equal(t, "hello Jane", result.Content[0].Text)
}

func TestToolsCallStructuredResult(t *testing.T) {
	s := newTestServer()
	resp := call(t, s, 4, "tools/call", map[string]interface{}{"name": "structured"})
	require.Nil(t, resp.Error)
	assert.Contains(t, string(resp.Result), `\"count\": 2`)
}

func TestToolsCallErrors(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		params      interface{}
		wantCode    int
		wantMessage string
	}{
		{"unknown method", "resources/read", nil, CodeMethodNotFound, "Method not found"},
		{"unknown tool", "tools/call", map[string]interface{}{"name": "nope"}, CodeMethodNotFound, "Method not found"},
		{"missing tool name", "tools/call", map[string]interface{}{}, CodeInvalidParams, "Invalid params"},
		{"invalid arguments", "tools/call", map[string]interface{}{"name": "bad_args"}, CodeInvalidParams, `Invalid params: unknown custom field "Nope"`},
		{"remote failure", "tools/call", map[string]interface{}{"name": "remote_fail"}, CodeInternalError, `Tool execution failed: CiviCRM API error (HTTP 500): "quoted" failure`},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			resp := call(t, s, 10+i, tt.method, tt.params)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMessage, resp.Error.Message)
			if len(resp.Error.Data) > 0 {
				assert.True(t, json.Valid(resp.Error.Data), "error data must be valid JSON: %s", resp.Error.Data)
			}
		})
	}
}

func TestInvalidJSONRPCVersion(t *testing.T) {
	s := newTestServer()
	resp, err := s.HandleMessage(context.Background(), &transport.Message{JSONRPC: "1.0", Method: "ping"})
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
	assert.Equal(t, json.RawMessage("0"), resp.ID)
}

func TestMalformedParams(t *testing.T) {
	s := newTestServer()
	resp, err := s.HandleMessage(context.Background(), &transport.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`"abc"`),
		Method:  "tools/call",
		Params:  json.RawMessage(`[1,2]`),
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
	assert.Equal(t, json.RawMessage(`"abc"`), resp.ID)
}

func TestPingAndEmptyLists(t *testing.T) {
	s := newTestServer()
	assert.JSONEq(t, `{}`, string(call(t, s, 1, "ping", nil).Result))
	assert.JSONEq(t, `{"resources":[]}`, string(call(t, s, 2, "resources/list", nil).Result))
	assert.JSONEq(t, `{"prompts":[]}`, string(call(t, s, 3, "prompts/list", nil).Result))
}

func TestRunWithoutTransport(t *testing.T) {
	s := NewServer("x", "y")
	assert.Error(t, s.Run())
}
