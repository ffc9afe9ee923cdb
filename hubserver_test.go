package gamehub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

// ============================================================================
// Test Helpers
// ============================================================================

const testToken = "test-bearer-token"

// testHub is a minimal hub server: it answers negotiate, accepts the
// WebSocket, completes the handshake and replies to invocations.
type testHub struct {
	t   *testing.T
	srv *httptest.Server

	negotiations    atomic.Int32
	rejectNegotiate atomic.Bool
	handshakeError  string

	mu          sync.Mutex
	authHeaders []string

	conns       chan *websocket.Conn
	invocations chan HubMessage
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	th := &testHub{
		t:           t,
		conns:       make(chan *websocket.Conn, 8),
		invocations: make(chan HubMessage, 32),
	}
	th.srv = httptest.NewServer(http.HandlerFunc(th.serve))
	t.Cleanup(th.srv.Close)
	return th
}

func (th *testHub) url() string {
	return th.srv.URL + "/gameHub"
}

func (th *testHub) client(opts ...ClientOption) *Client {
	return NewClient(testToken, append([]ClientOption{WithHubURL(th.url())}, opts...)...)
}

func (th *testHub) lastAuth() string {
	th.mu.Lock()
	defer th.mu.Unlock()
	if len(th.authHeaders) == 0 {
		return ""
	}
	return th.authHeaders[len(th.authHeaders)-1]
}

func (th *testHub) serve(w http.ResponseWriter, r *http.Request) {
	th.mu.Lock()
	th.authHeaders = append(th.authHeaders, r.Header.Get("Authorization"))
	th.mu.Unlock()

	if strings.HasSuffix(r.URL.Path, "/negotiate") {
		th.negotiate(w, r)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	ctx := context.Background()

	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var hs handshakeRequest
	if err := json.Unmarshal([]byte(strings.TrimSuffix(string(data), "\x1e")), &hs); err != nil || hs.Protocol != "json" {
		conn.Close(websocket.StatusProtocolError, "bad handshake")
		return
	}
	if th.handshakeError != "" {
		conn.Write(ctx, websocket.MessageText, mustRecord(th.t, handshakeResponse{Error: th.handshakeError}))
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte("{}\x1e")); err != nil {
		return
	}
	th.conns <- conn

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		msgs, _ := parseMessages(data)
		for _, m := range msgs {
			if m.Type != MessageInvocation {
				continue
			}
			th.invocations <- m
			th.reply(ctx, conn, m)
		}
	}
}

func (th *testHub) negotiate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Query().Get("negotiateVersion") != "1" {
		http.Error(w, "bad negotiate", http.StatusBadRequest)
		return
	}
	if th.rejectNegotiate.Load() || r.Header.Get("Authorization") != "Bearer "+testToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	n := th.negotiations.Add(1)
	json.NewEncoder(w).Encode(NegotiateResponse{
		ConnectionID:     fmt.Sprintf("conn-%d", n),
		ConnectionToken:  fmt.Sprintf("token-%d", n),
		NegotiateVersion: 1,
		AvailableTransports: []AvailableTransport{
			{Transport: "WebSockets", TransferFormats: []string{"Text", "Binary"}},
		},
	})
}

// reply completes an invocation. "Fail" is rejected, "Hang" never
// completes, anything else succeeds.
func (th *testHub) reply(ctx context.Context, conn *websocket.Conn, m HubMessage) {
	if m.InvocationID == "" {
		return
	}
	switch m.Target {
	case "Hang":
		return
	case "Fail":
		conn.Write(ctx, websocket.MessageText, mustRecord(th.t, HubMessage{
			Type: MessageCompletion, InvocationID: m.InvocationID, Error: "group does not exist",
		}))
	default:
		conn.Write(ctx, websocket.MessageText, mustRecord(th.t, HubMessage{
			Type: MessageCompletion, InvocationID: m.InvocationID,
		}))
	}
}

func (th *testHub) nextConn() *websocket.Conn {
	th.t.Helper()
	select {
	case c := <-th.conns:
		return c
	case <-time.After(5 * time.Second):
		th.t.Fatal("timed out waiting for hub connection")
		return nil
	}
}

func (th *testHub) nextInvocation() HubMessage {
	th.t.Helper()
	select {
	case m := <-th.invocations:
		return m
	case <-time.After(5 * time.Second):
		th.t.Fatal("timed out waiting for invocation")
		return HubMessage{}
	}
}

func mustRecord(t *testing.T, v any) []byte {
	t.Helper()
	data, err := encodeRecord(v)
	if err != nil {
		t.Fatalf("encode record: %v", err)
	}
	return data
}

func push(t *testing.T, conn *websocket.Conn, target string, args ...any) {
	t.Helper()
	if args == nil {
		args = []any{}
	}
	data := mustRecord(t, invocationMessage{Type: MessageInvocation, Target: target, Arguments: args})
	if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		t.Fatalf("push %s: %v", target, err)
	}
}

func waitSignal[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func startHub(t *testing.T, th *testHub, cfg *HubConfig) *HubConnection {
	t.Helper()
	hub := th.client().NewHubConnection(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hub.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { hub.Stop(context.Background()) })
	return hub
}
