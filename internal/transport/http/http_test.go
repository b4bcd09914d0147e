package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/civicrm-mcp/internal/transport"
)

func testHandler(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	switch msg.Method {
	case "notifications/initialized":
		return nil, nil
	case "boom":
		return nil, errors.New("handler failed")
	}
	result, _ := json.Marshal(map[string]string{"method": msg.Method})
	return &transport.Message{JSONRPC: "2.0", ID: msg.ID, Result: result}, nil
}

func post(t *testing.T, h http.Handler, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	tr := New("127.0.0.1:0", "secret", testHandler)
	rec := httptest.NewRecorder()
	tr.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMCPRoundTrip(t *testing.T) {
	tr := New("127.0.0.1:0", "", testHandler)

	rec := post(t, tr.Router(), `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(SessionHeader))

	var msg transport.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, json.RawMessage("1"), msg.ID)
	assert.JSONEq(t, `{"method":"initialize"}`, string(msg.Result))

	rec = post(t, tr.Router(), `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, "")
	assert.Empty(t, rec.Header().Get(SessionHeader))
}

func TestMCPNotificationAccepted(t *testing.T) {
	tr := New("127.0.0.1:0", "", testHandler)
	rec := post(t, tr.Router(), `{"jsonrpc":"2.0","method":"notifications/initialized"}`, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestMCPHandlerError(t *testing.T) {
	tr := New("127.0.0.1:0", "", testHandler)
	rec := post(t, tr.Router(), `{"jsonrpc":"2.0","id":5,"method":"boom"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var msg transport.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	require.NotNil(t, msg.Error)
	assert.Equal(t, -32603, msg.Error.Code)
	assert.Equal(t, "handler failed", msg.Error.Message)
}

func TestMCPParseError(t *testing.T) {
	tr := New("127.0.0.1:0", "", testHandler)
	rec := post(t, tr.Router(), `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "-32700")
}

func TestMCPRequiresBearerToken(t *testing.T) {
	tr := New("127.0.0.1:0", "secret", testHandler)
	body := `{"jsonrpc":"2.0","id":1,"method":"ping"}`

	assert.Equal(t, http.StatusUnauthorized, post(t, tr.Router(), body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, post(t, tr.Router(), body, "wrong").Code)
	assert.Equal(t, http.StatusOK, post(t, tr.Router(), body, "secret").Code)
}

func TestMCPRejectsOtherMethods(t *testing.T) {
	tr := New("127.0.0.1:0", "", testHandler)
	rec := httptest.NewRecorder()
	tr.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWriteMessageUnsupported(t *testing.T) {
	tr := New("127.0.0.1:0", "", testHandler)
	assert.Error(t, tr.WriteMessage(&transport.Message{Method: "notifications/tools/list_changed"}))
	assert.NoError(t, tr.Close())
}
