package gamehub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// ============================================================================
// Configuration
// ============================================================================

// HubConfig configures a hub connection.
type HubConfig struct {
	AutoReconnect     bool
	RetryDelays       []time.Duration
	KeepAliveInterval time.Duration
	ServerTimeout     time.Duration
	HandshakeTimeout  time.Duration
	SkipNegotiation   bool
	MaxMessageSize    int64
}

func (c *HubConfig) defaults() {
	if c.RetryDelays == nil {
		c.RetryDelays = append([]time.Duration(nil), DefaultRetryDelays...)
	}
	if c.KeepAliveInterval == 0 {
		c.KeepAliveInterval = 15 * time.Second
	}
	if c.ServerTimeout == 0 {
		c.ServerTimeout = 30 * time.Second
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 15 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 1 << 20
	}
}

const maxNegotiateRedirects = 100

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// ============================================================================
// Event Dispatcher
// ============================================================================

// Handler receives the arguments of a hub invocation targeting a client
// method. Arguments are left undecoded.
type Handler func(args []json.RawMessage)

type eventDispatcher struct {
	mu             sync.RWMutex
	log            zerolog.Logger
	handlers       map[string][]Handler
	onClose        []func(error)
	onReconnecting []func(error)
	onReconnected  []func(string)
}

func newEventDispatcher(log zerolog.Logger) *eventDispatcher {
	return &eventDispatcher{
		log:      log,
		handlers: make(map[string][]Handler),
	}
}

// dispatch runs the handlers for target on the calling goroutine, so
// events reach handlers in the order the hub sent them. Method names are
// matched case-insensitively.
func (d *eventDispatcher) dispatch(target string, args []json.RawMessage) {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers[strings.ToLower(target)]...)
	d.mu.RUnlock()

	if len(handlers) == 0 {
		d.log.Warn().Str("target", target).Msg("no client method registered for hub invocation")
		return
	}
	for _, h := range handlers {
		d.safeCall(target, func() { h(args) })
	}
}

func (d *eventDispatcher) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("handler", name).Interface("panic", r).Msg("hub handler panicked")
		}
	}()
	fn()
}

func (d *eventDispatcher) emitClose(err error) {
	d.mu.RLock()
	handlers := append([]func(error){}, d.onClose...)
	d.mu.RUnlock()
	for _, h := range handlers {
		d.safeCall("onclose", func() { h(err) })
	}
}

func (d *eventDispatcher) emitReconnecting(err error) {
	d.mu.RLock()
	handlers := append([]func(error){}, d.onReconnecting...)
	d.mu.RUnlock()
	for _, h := range handlers {
		d.safeCall("onreconnecting", func() { h(err) })
	}
}

func (d *eventDispatcher) emitReconnected(connectionID string) {
	d.mu.RLock()
	handlers := append([]func(string){}, d.onReconnected...)
	d.mu.RUnlock()
	for _, h := range handlers {
		d.safeCall("onreconnected", func() { h(connectionID) })
	}
}

// ============================================================================
// HubConnection
// ============================================================================

// HubConnection is a WebSocket hub connection with keep-alive and
// automatic reconnect.
type HubConnection struct {
	client *Client
	config *HubConfig
	log    zerolog.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	state         State
	connectionID  string
	stopRequested bool
	lifeCtx       context.Context
	lifeCancel    context.CancelFunc
	cancelFn      context.CancelFunc
	done          chan struct{}

	dispatcher  *eventDispatcher
	recon       *reconnector
	lastMessage atomic.Int64

	pendingMu sync.Mutex
	pending   map[string]chan HubMessage
}

// NewHubConnection creates a hub connection for the client's endpoint.
// Call Start to connect.
func (c *Client) NewHubConnection(config *HubConfig) *HubConnection {
	var cfg HubConfig
	if config != nil {
		cfg = *config
	}
	cfg.defaults()
	log := c.logger.With().Str("component", "hub").Logger()
	return &HubConnection{
		client:     c,
		config:     &cfg,
		log:        log,
		state:      StateDisconnected,
		dispatcher: newEventDispatcher(log),
		recon:      newReconnector(&cfg),
		pending:    make(map[string]chan HubMessage),
	}
}

// On registers a handler for a client method the hub invokes.
func (h *HubConnection) On(target string, handler Handler) {
	h.dispatcher.mu.Lock()
	key := strings.ToLower(target)
	h.dispatcher.handlers[key] = append(h.dispatcher.handlers[key], handler)
	h.dispatcher.mu.Unlock()
}

// OnClose registers a handler for when the connection stops for good,
// either by Stop (nil error) or after reconnect gives up.
func (h *HubConnection) OnClose(fn func(err error)) {
	h.dispatcher.mu.Lock()
	h.dispatcher.onClose = append(h.dispatcher.onClose, fn)
	h.dispatcher.mu.Unlock()
}

// OnReconnecting registers a handler for when a lost connection starts
// reconnecting.
func (h *HubConnection) OnReconnecting(fn func(err error)) {
	h.dispatcher.mu.Lock()
	h.dispatcher.onReconnecting = append(h.dispatcher.onReconnecting, fn)
	h.dispatcher.mu.Unlock()
}

// OnReconnected registers a handler for a successful reconnect.
func (h *HubConnection) OnReconnected(fn func(connectionID string)) {
	h.dispatcher.mu.Lock()
	h.dispatcher.onReconnected = append(h.dispatcher.onReconnected, fn)
	h.dispatcher.mu.Unlock()
}

// State returns the current connection state.
func (h *HubConnection) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// ConnectionID returns the id assigned by the last negotiation.
func (h *HubConnection) ConnectionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connectionID
}

// Start negotiates, dials and performs the protocol handshake. ctx bounds
// the start only; the established connection outlives it. A failed start
// is not retried.
func (h *HubConnection) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.state != StateDisconnected {
		state := h.state
		h.mu.Unlock()
		return fmt.Errorf("cannot start a hub connection in the %s state", state)
	}
	h.state = StateConnecting
	h.stopRequested = false
	h.lifeCtx, h.lifeCancel = context.WithCancel(context.Background())
	h.mu.Unlock()

	if err := h.connect(ctx); err != nil {
		h.mu.Lock()
		h.state = StateDisconnected
		h.lifeCancel()
		h.mu.Unlock()
		return err
	}
	return nil
}

// Stop closes the connection and cancels any reconnect in progress.
// OnClose handlers receive a nil error.
func (h *HubConnection) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.state == StateDisconnected {
		h.mu.Unlock()
		return nil
	}
	h.stopRequested = true
	if h.lifeCancel != nil {
		h.lifeCancel()
	}
	if h.cancelFn != nil {
		h.cancelFn()
		h.cancelFn = nil
	}
	conn, done := h.conn, h.done
	h.mu.Unlock()

	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "client disconnect"); err != nil {
			h.log.Debug().Err(err).Msg("close websocket")
		}
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	h.finish(nil)
	h.log.Info().Msg("hub connection stopped")
	return nil
}

// Invoke calls a hub method and waits for its completion. A rejection by
// the hub is returned as *HubError.
func (h *HubConnection) Invoke(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := make(chan HubMessage, 1)
	h.pendingMu.Lock()
	h.pending[id] = ch
	h.pendingMu.Unlock()

	if args == nil {
		args = []any{}
	}
	err := h.write(ctx, invocationMessage{
		Type:         MessageInvocation,
		InvocationID: id,
		Target:       method,
		Arguments:    args,
	})
	if err != nil {
		h.dropPending(id)
		return nil, fmt.Errorf("invoke %s: %w", method, err)
	}

	select {
	case c, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("invoke %s: %w", method, ErrConnectionClosed)
		}
		if c.Error != "" {
			return nil, &HubError{Method: method, Message: c.Error}
		}
		return c.Result, nil
	case <-ctx.Done():
		h.dropPending(id)
		return nil, ctx.Err()
	}
}

// Send invokes a hub method without waiting for a result.
func (h *HubConnection) Send(ctx context.Context, method string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	return h.write(ctx, invocationMessage{
		Type:      MessageInvocation,
		Target:    method,
		Arguments: args,
	})
}

func (h *HubConnection) write(ctx context.Context, v any) error {
	h.mu.Lock()
	conn, state := h.conn, h.state
	h.mu.Unlock()

	if conn == nil || state != StateConnected {
		return ErrNotConnected
	}
	data, err := encodeRecord(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// ----------------------------------------------------------------------------
// Connect / handshake
// ----------------------------------------------------------------------------

func (h *HubConnection) connect(ctx context.Context) error {
	endpoint, token, connID, err := h.resolveEndpoint(ctx)
	if err != nil {
		return err
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	// The websocket dial is bounded by ctx, not by the client timeout.
	httpClient := *h.client.httpClient
	dialCtx := ctx
	if httpClient.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, httpClient.Timeout)
		defer cancel()
		httpClient.Timeout = 0
	}

	conn, _, err := websocket.Dial(dialCtx, endpoint, &websocket.DialOptions{
		HTTPClient: &httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(h.config.MaxMessageSize)

	rest, err := h.handshake(ctx, conn)
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "handshake failed")
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	h.mu.Lock()
	if h.stopRequested {
		h.mu.Unlock()
		cancel()
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
		return errStopped
	}
	h.conn = conn
	h.connectionID = connID
	h.state = StateConnected
	h.cancelFn = cancel
	h.done = done
	h.mu.Unlock()

	h.touch()
	h.recon.reset()
	h.log.Info().Str("connection_id", connID).Msg("hub connected")

	go h.readLoop(loopCtx, conn, done, rest)
	go h.keepAliveLoop(loopCtx, conn)
	return nil
}

// resolveEndpoint negotiates, following redirects, and returns the
// WebSocket URL, the bearer token to present and the connection id.
func (h *HubConnection) resolveEndpoint(ctx context.Context) (string, string, string, error) {
	hubURL, token := h.client.hubURL, h.client.token
	if h.config.SkipNegotiation {
		endpoint, err := webSocketURL(hubURL, "")
		return endpoint, token, "", err
	}

	for i := 0; i < maxNegotiateRedirects; i++ {
		resp, err := h.client.negotiate(ctx, hubURL, token)
		if err != nil {
			return "", "", "", err
		}
		if resp.URL != "" {
			h.log.Debug().Str("url", resp.URL).Msg("negotiate redirect")
			hubURL = resp.URL
			if resp.AccessToken != "" {
				token = resp.AccessToken
			}
			continue
		}
		if !resp.SupportsWebSockets() {
			return "", "", "", fmt.Errorf("negotiate: hub does not offer the WebSockets transport")
		}
		endpoint, err := webSocketURL(hubURL, resp.connectionTokenOrID())
		return endpoint, token, resp.ConnectionID, err
	}
	return "", "", "", fmt.Errorf("negotiate: redirection limit exceeded")
}

func (h *HubConnection) handshake(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	hsCtx, cancel := context.WithTimeout(ctx, h.config.HandshakeTimeout)
	defer cancel()

	req, err := encodeRecord(handshakeRequest{Protocol: "json", Version: 1})
	if err != nil {
		return nil, err
	}
	if err := conn.Write(hsCtx, websocket.MessageText, req); err != nil {
		return nil, fmt.Errorf("%w: send: %v", ErrHandshake, err)
	}

	_, data, err := conn.Read(hsCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrHandshake, err)
	}
	resp, rest, err := parseHandshake(data)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrHandshake, resp.Error)
	}
	return rest, nil
}

// ----------------------------------------------------------------------------
// Loops
// ----------------------------------------------------------------------------

func (h *HubConnection) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}, pending []byte) {
	defer close(done)

	if len(pending) > 0 {
		if closeMsg := h.handleFrame(ctx, pending); closeMsg != nil {
			h.serverClosed(conn, closeMsg)
			return
		}
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			h.connectionLost(conn, err, true)
			return
		}
		h.touch()

		if closeMsg := h.handleFrame(ctx, data); closeMsg != nil {
			h.serverClosed(conn, closeMsg)
			return
		}
	}
}

// handleFrame processes every record in a frame and returns the close
// message if the hub sent one.
func (h *HubConnection) handleFrame(ctx context.Context, data []byte) *HubMessage {
	msgs, err := parseMessages(data)
	if err != nil {
		h.log.Warn().Err(err).Msg("malformed hub frame")
	}

	for i := range msgs {
		m := msgs[i]
		switch m.Type {
		case MessageInvocation:
			h.dispatcher.dispatch(m.Target, m.Arguments)
			if m.InvocationID != "" {
				err := h.write(ctx, completionMessage{
					Type:         MessageCompletion,
					InvocationID: m.InvocationID,
					Error:        "Client didn't provide a result.",
				})
				if err != nil {
					h.log.Debug().Err(err).Msg("reply to hub invocation")
				}
			}
		case MessageCompletion:
			h.resolve(m)
		case MessagePing:
		case MessageClose:
			return &m
		default:
			h.log.Debug().Int("type", int(m.Type)).Msg("ignoring unsupported hub message")
		}
	}
	return nil
}

func (h *HubConnection) keepAliveLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(h.lastReceived()) > h.config.ServerTimeout {
				h.log.Warn().Dur("timeout", h.config.ServerTimeout).Msg("no message from hub, closing connection")
				conn.Close(websocket.StatusGoingAway, "server timeout")
				return
			}
			if err := h.write(ctx, pingMessage{Type: MessagePing}); err != nil {
				return
			}
		}
	}
}

func (h *HubConnection) serverClosed(conn *websocket.Conn, m *HubMessage) {
	var cause error
	if m.Error != "" {
		cause = fmt.Errorf("server closed the connection with an error: %s", m.Error)
	}
	h.log.Info().Bool("allow_reconnect", m.AllowReconnect).Str("error", m.Error).Msg("hub sent close")
	h.connectionLost(conn, cause, m.AllowReconnect)
	conn.Close(websocket.StatusNormalClosure, "")
}

// connectionLost handles the end of conn. It is a no-op if conn is no
// longer the active connection or if Stop is in progress.
func (h *HubConnection) connectionLost(conn *websocket.Conn, cause error, allowReconnect bool) {
	h.mu.Lock()
	if h.conn != conn {
		h.mu.Unlock()
		return
	}
	h.conn = nil
	if h.cancelFn != nil {
		h.cancelFn()
		h.cancelFn = nil
	}
	if h.stopRequested {
		h.mu.Unlock()
		return
	}
	reconnect := h.config.AutoReconnect && allowReconnect
	if reconnect {
		h.state = StateReconnecting
	}
	life := h.lifeCtx
	h.mu.Unlock()

	h.failPending()
	if reconnect {
		go h.reconnect(life, cause)
		return
	}
	h.finish(cause)
}

func (h *HubConnection) reconnect(life context.Context, cause error) {
	h.log.Warn().Err(cause).Msg("hub connection lost, reconnecting")
	h.dispatcher.emitReconnecting(cause)

	for {
		delay, ok := h.recon.nextDelay()
		if !ok {
			break
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-life.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if life.Err() != nil {
			return
		}

		attempt := h.recon.attempts()
		err := h.connect(life)
		if err == nil {
			h.log.Info().Int("attempts", attempt).Msg("hub reconnected")
			h.dispatcher.emitReconnected(h.ConnectionID())
			return
		}
		if errors.Is(err, errStopped) || life.Err() != nil {
			return
		}
		h.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
		cause = err
	}

	h.finish(fmt.Errorf("reconnect retries have been exhausted: %w", cause))
}

// finish moves to the disconnected state and fires OnClose once.
func (h *HubConnection) finish(err error) {
	h.mu.Lock()
	if h.state == StateDisconnected {
		h.mu.Unlock()
		return
	}
	h.state = StateDisconnected
	h.conn = nil
	h.mu.Unlock()

	h.failPending()
	if err != nil {
		h.log.Error().Err(err).Msg("hub connection closed")
	}
	h.dispatcher.emitClose(err)
}

// ----------------------------------------------------------------------------
// Pending invocations
// ----------------------------------------------------------------------------

func (h *HubConnection) resolve(m HubMessage) {
	h.pendingMu.Lock()
	ch, ok := h.pending[m.InvocationID]
	if ok {
		delete(h.pending, m.InvocationID)
	}
	h.pendingMu.Unlock()

	if !ok {
		h.log.Debug().Str("invocation_id", m.InvocationID).Msg("completion for unknown invocation")
		return
	}
	ch <- m
}

func (h *HubConnection) dropPending(id string) {
	h.pendingMu.Lock()
	delete(h.pending, id)
	h.pendingMu.Unlock()
}

func (h *HubConnection) failPending() {
	h.pendingMu.Lock()
	for id, ch := range h.pending {
		close(ch)
		delete(h.pending, id)
	}
	h.pendingMu.Unlock()
}

func (h *HubConnection) touch() {
	h.lastMessage.Store(time.Now().UnixNano())
}

func (h *HubConnection) lastReceived() time.Time {
	return time.Unix(0, h.lastMessage.Load())
}
