// Package session ties a hub connection to the live view model: it owns
// the single connection handle, routes pushed events through the reducer
// table, and runs the join/leave commands.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	gamehub "github.com/sportsmo/gamehub-go"
	"github.com/sportsmo/gamehub-go/feed"
	"github.com/sportsmo/gamehub-go/notify"
	"github.com/sportsmo/gamehub-go/viewmodel"
)

// Hub is the part of a hub connection the session drives.
// *gamehub.HubConnection implements it.
type Hub interface {
	On(target string, handler gamehub.Handler)
	OnClose(fn func(err error))
	OnReconnecting(fn func(err error))
	OnReconnected(fn func(connectionID string))
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Invoke(ctx context.Context, method string, args ...any) (json.RawMessage, error)
}

// Dialer builds an unstarted hub connection authenticated with token.
type Dialer func(token string) Hub

// HubDialer returns a Dialer that creates gamehub connections with
// automatic reconnect enabled.
func HubDialer(opts ...gamehub.ClientOption) Dialer {
	return func(token string) Hub {
		return gamehub.NewClient(token, opts...).NewHubConnection(&gamehub.HubConfig{AutoReconnect: true})
	}
}

type Session struct {
	store   *viewmodel.Store
	toaster *notify.Toaster
	dial    Dialer
	log     zerolog.Logger

	mu    sync.Mutex
	hub   Hub
	state gamehub.State
	// starting is the hub whose Start has not returned yet; closedEarly
	// records that it reported a close in that window.
	starting    Hub
	closedEarly bool
}

type Option func(*Session)

func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dial = d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.log = logger }
}

func WithStore(store *viewmodel.Store) Option {
	return func(s *Session) { s.store = store }
}

func WithToaster(t *notify.Toaster) Option {
	return func(s *Session) { s.toaster = t }
}

// New creates a disconnected session. Without WithDialer it connects to
// gamehub.DefaultHubURL.
func New(opts ...Option) *Session {
	s := &Session{
		state: gamehub.StateDisconnected,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = viewmodel.NewStore()
	}
	if s.toaster == nil {
		s.toaster = notify.New()
	}
	if s.dial == nil {
		s.dial = HubDialer(gamehub.WithLogger(s.log))
	}
	s.log = s.log.With().Str("component", "session").Logger()
	return s
}

func (s *Session) Store() *viewmodel.Store { return s.store }

func (s *Session) Toaster() *notify.Toaster { return s.toaster }

// State returns the connection state as last reported by the hub.
func (s *Session) State() gamehub.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether a connection handle exists.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hub != nil
}

// Connect establishes the session's one hub connection. It returns
// *ValidationError for an empty token, ErrAlreadyConnected if a handle
// exists, and *ConnectionError if the hub could not be reached.
func (s *Session) Connect(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return s.invalid("Please enter a token before connecting.")
	}

	s.mu.Lock()
	if s.hub != nil || s.starting != nil {
		s.mu.Unlock()
		s.log.Warn().Msg("connect ignored: hub connection already exists")
		return ErrAlreadyConnected
	}
	hub := s.dial(token)
	s.starting = hub
	s.closedEarly = false
	s.state = gamehub.StateConnecting
	s.mu.Unlock()

	s.register(hub)
	err := hub.Start(ctx)

	s.mu.Lock()
	s.starting = nil
	closed := s.closedEarly
	s.closedEarly = false
	if err != nil {
		s.state = gamehub.StateDisconnected
		s.mu.Unlock()

		cerr := &ConnectionError{Err: err}
		s.log.Error().Err(err).Msg("hub connection failed")
		s.store.Update(func(vm viewmodel.ViewModel) viewmodel.ViewModel {
			return vm.AppendLog(cerr.Error())
		})
		s.toaster.Show(cerr.Error(), notify.Error)
		return cerr
	}
	if closed {
		// The close callback has already reported it; the handle is
		// never published.
		s.state = gamehub.StateDisconnected
		s.mu.Unlock()
		s.log.Warn().Msg("hub closed before start completed")
		return &ConnectionError{Err: gamehub.ErrConnectionClosed}
	}
	s.hub = hub
	if s.state == gamehub.StateConnecting {
		s.state = gamehub.StateConnected
	}
	s.mu.Unlock()

	s.log.Info().Msg("hub connected")
	s.toaster.Show("Hub connected.", notify.Success)
	return nil
}

// Disconnect stops the connection and releases the handle so Connect may
// be called again. Join flags are left as they were.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	hub := s.hub
	s.hub = nil
	if hub != nil {
		s.state = gamehub.StateDisconnected
	}
	s.mu.Unlock()

	if hub == nil {
		return nil
	}
	err := hub.Stop(ctx)
	s.log.Info().Msg("hub disconnected")
	s.toaster.Show("Disconnected from hub.", notify.Info)
	return err
}

// register wires the reducer table and the lifecycle callbacks onto hub.
func (s *Session) register(hub Hub) {
	for _, event := range viewmodel.Events() {
		event := event
		hub.On(event, func(args []json.RawMessage) {
			var payload json.RawMessage
			if len(args) > 0 {
				payload = args[0]
			}
			s.receive(event, payload)
		})
	}

	hub.OnClose(func(err error) {
		if !s.transition(hub, gamehub.StateDisconnected) {
			return
		}
		if err != nil {
			cerr := &ConnectionError{Err: err}
			s.log.Error().Err(err).Msg("hub connection closed")
			s.store.Update(func(vm viewmodel.ViewModel) viewmodel.ViewModel {
				return vm.AppendLog(cerr.Error())
			})
		} else {
			s.log.Warn().Msg("hub connection closed")
		}
		s.toaster.Show("Hub connection closed.", notify.Error)
	})
	hub.OnReconnecting(func(err error) {
		if !s.transition(hub, gamehub.StateReconnecting) {
			return
		}
		s.log.Warn().Err(err).Msg("hub reconnecting")
		s.toaster.Show("Hub reconnecting...", notify.Info)
	})
	hub.OnReconnected(func(connectionID string) {
		if !s.transition(hub, gamehub.StateConnected) {
			return
		}
		s.log.Info().Str("connection_id", connectionID).Msg("hub reconnected")
		s.toaster.Show("Hub reconnected.", notify.Success)
	})
}

// transition records a lifecycle state reported by hub, ignoring hubs the
// session has already let go of. A hub still inside Start counts as
// current.
func (s *Session) transition(hub Hub, state gamehub.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.hub == hub:
	case s.starting == hub:
		if state == gamehub.StateDisconnected {
			s.closedEarly = true
		}
	default:
		return false
	}
	s.state = state
	return true
}

func (s *Session) receive(event string, payload json.RawMessage) {
	s.log.Debug().Str("event", event).Str("payload", string(feed.Compact(payload))).Msg("hub event")
	if notice := s.store.Dispatch(event, payload); notice != nil {
		s.toaster.Show(notice.Message, notice.Severity)
	}
}

func (s *Session) currentHub() Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hub
}

func (s *Session) invalid(message string) error {
	s.log.Warn().Msg(message)
	s.toaster.Show(message, notify.Error)
	return &ValidationError{Message: message}
}
