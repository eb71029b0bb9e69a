package unittest

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// MockHostError mirrors the error object of the host protocol.
type MockHostError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MockHostCall is one recorded request.
type MockHostCall struct {
	Method string
	Params json.RawMessage
}

// MockHostHandler produces the result (or error) for one request.
type MockHostHandler func(method string, params json.RawMessage) (interface{}, *MockHostError)

// MockHost is a fake host runtime listening on a real Unix socket and
// speaking the line-delimited JSON protocol. It records every request.
type MockHost struct {
	t        *testing.T
	listener net.Listener
	path     string
	handler  MockHostHandler

	mu    sync.Mutex
	calls []MockHostCall
}

// NewMockHost starts a mock host. The socket lives in a fresh short-path
// temp directory (Unix socket paths have a low length limit) and is cleaned
// up with the test.
func NewMockHost(t *testing.T, handler MockHostHandler) *MockHost {
	dir, err := os.MkdirTemp("", "mockhost")
	require.NoError(t, err)
	path := filepath.Join(dir, "host.sock")

	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	h := &MockHost{
		t:        t,
		listener: listener,
		path:     path,
		handler:  handler,
	}
	go h.acceptLoop()
	t.Cleanup(func() {
		_ = listener.Close()
		_ = os.RemoveAll(dir)
	})
	return h
}

func (h *MockHost) SocketPath() string {
	return h.path
}

// Calls returns all recorded requests for the given method; an empty method
// matches everything.
func (h *MockHost) Calls(method string) []MockHostCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []MockHostCall
	for _, c := range h.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Close stops accepting connections.
func (h *MockHost) Close() {
	_ = h.listener.Close()
}

func (h *MockHost) acceptLoop() {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			return
		}
		go h.handleConn(conn)
	}
}

func (h *MockHost) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var req struct {
			ID     uint64          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return
		}

		h.mu.Lock()
		h.calls = append(h.calls, MockHostCall{Method: req.Method, Params: req.Params})
		h.mu.Unlock()

		result, hostErr := h.handler(req.Method, req.Params)
		resp := map[string]interface{}{"id": req.ID}
		if hostErr != nil {
			resp["error"] = hostErr
		} else {
			resp["result"] = result
		}
		line, err := json.Marshal(resp)
		if err != nil {
			return
		}
		line = append(line, '\n')
		if _, err := conn.Write(line); err != nil {
			return
		}
	}
}
