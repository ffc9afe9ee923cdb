package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	gamehub "github.com/sportsmo/gamehub-go"
	"github.com/sportsmo/gamehub-go/session"
)

// settings is the effective hub endpoint and token after applying, in
// order of precedence, flags, environment and the config file.
type settings struct {
	hubURL      string
	environment string
	token       string
}

func resolveSettings(cfg *Config) settings {
	s := settings{
		hubURL:      cfg.Hub.URL,
		environment: cfg.Hub.Environment,
		token:       cfg.Auth.Token,
	}
	if v := os.Getenv("GAMEHUB_URL"); v != "" {
		s.hubURL = v
	}
	if v := os.Getenv("GAMEHUB_TOKEN"); v != "" {
		s.token = v
	}
	if flagURL != "" {
		s.hubURL = flagURL
	}
	if flagToken != "" {
		s.token = flagToken
	}
	return s
}

func (s settings) clientOptions() []gamehub.ClientOption {
	opts := []gamehub.ClientOption{gamehub.WithLogger(log.Logger)}
	switch {
	case s.hubURL != "":
		opts = append(opts, gamehub.WithHubURL(s.hubURL))
	case s.environment != "":
		opts = append(opts, gamehub.WithEnvironment(gamehub.Environment(s.environment)))
	}
	return opts
}

func (s settings) endpoint() string {
	return gamehub.NewClient("", s.clientOptions()...).HubURL()
}

// loadSettings loads the config and resolves the effective settings. A
// missing token is an error for every command that connects.
func loadSettings() (settings, error) {
	cfg, err := loadConfig()
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	s := resolveSettings(cfg)
	if s.token == "" {
		return s, fmt.Errorf("no token: run 'gamehub init <token>', set GAMEHUB_TOKEN or pass --token")
	}
	return s, nil
}

// newSession builds a session wired to the resolved endpoint.
func newSession(s settings) *session.Session {
	return session.New(
		session.WithLogger(log.Logger),
		session.WithDialer(session.HubDialer(s.clientOptions()...)),
	)
}

// maskKey shows the first 6 and last 4 characters of a token.
func maskKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:6] + "..." + key[len(key)-4:]
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
