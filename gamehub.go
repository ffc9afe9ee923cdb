// Package gamehub is a Go client for the SportsMo game hub, a real-time
// broadcast service that pushes live game events (drives, plays, scores,
// virtual field, donations, wallet balance) to joined groups.
//
// The package covers the transport only: negotiation, the WebSocket
// connection, the JSON hub protocol, keep-alive and automatic reconnect.
// The live view model built on top of it lives in the viewmodel and
// session packages.
//
// Example:
//
//	client := gamehub.NewClient("eyJhbGciOi...")
//	hub := client.NewHubConnection(&gamehub.HubConfig{AutoReconnect: true})
//
//	hub.On("ReceiveLiveScore", func(args []json.RawMessage) { ... })
//	if err := hub.Start(ctx); err != nil { ... }
//
//	_, err := hub.Invoke(ctx, "JoinGame", 42)
package gamehub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ============================================================================
// Environment
// ============================================================================

type Environment string

const (
	Development Environment = "development"
	Local       Environment = "local"
)

var environments = map[Environment]string{
	Development: "https://sportsmo-api-dev-ehhggcfugdegd0ea.centralus-01.azurewebsites.net/gameHub",
	Local:       "https://localhost:7269/gameHub",
}

const (
	DefaultHubURL  = "https://sportsmo-api-dev-ehhggcfugdegd0ea.centralus-01.azurewebsites.net/gameHub"
	DefaultTimeout = 30 * time.Second
)

// ============================================================================
// Client
// ============================================================================

// Client carries the hub endpoint and the bearer token shared by every
// request a hub connection makes.
type Client struct {
	token      string
	hubURL     string
	httpClient *http.Client
	logger     zerolog.Logger
}

type ClientOption func(*Client)

func WithHubURL(u string) ClientOption {
	return func(c *Client) { c.hubURL = strings.TrimRight(u, "/") }
}

func WithEnvironment(env Environment) ClientOption {
	return func(c *Client) {
		if u, ok := environments[env]; ok {
			c.hubURL = u
		}
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithLogger sets the logger used by the client and every hub connection
// created from it. The default discards everything.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new hub client authenticated with token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:  token,
		hubURL: DefaultHubURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token used for subsequent connections.
func (c *Client) SetToken(token string) {
	c.token = token
}

// HubURL returns the configured hub endpoint.
func (c *Client) HubURL() string {
	return c.hubURL
}

// ============================================================================
// Internal request helper
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, rawURL, token string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// ============================================================================
// Negotiation
// ============================================================================

// Negotiate asks the hub which transports it offers and returns the
// connection token to present on the WebSocket upgrade. Redirects are
// not followed here; see HubConnection for that.
func (c *Client) Negotiate(ctx context.Context) (*NegotiateResponse, error) {
	return c.negotiate(ctx, c.hubURL, c.token)
}

func (c *Client) negotiate(ctx context.Context, hubURL, token string) (*NegotiateResponse, error) {
	u, err := negotiateURL(hubURL)
	if err != nil {
		return nil, err
	}

	data, status, err := c.doRequest(ctx, http.MethodPost, u, token)
	if err != nil {
		return nil, fmt.Errorf("negotiate: %w", err)
	}
	if status < 200 || status > 299 {
		return nil, &NegotiateError{StatusCode: status, Body: strings.TrimSpace(string(data))}
	}

	resp, err := decodeJSON[NegotiateResponse](data)
	if err != nil {
		return nil, fmt.Errorf("negotiate: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("negotiate: %s", resp.Error)
	}
	return resp, nil
}

func negotiateURL(hubURL string) (string, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return "", fmt.Errorf("invalid hub url %q: %w", hubURL, err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/negotiate"
	q := u.Query()
	q.Set("negotiateVersion", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// webSocketURL maps an http(s) hub endpoint to its ws(s) form and attaches
// the negotiated connection token.
func webSocketURL(hubURL, connectionToken string) (string, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return "", fmt.Errorf("invalid hub url %q: %w", hubURL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported hub url scheme %q", u.Scheme)
	}
	if connectionToken != "" {
		q := u.Query()
		q.Set("id", connectionToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
