package gamehub

import (
	"sync"
	"time"
)

// DefaultRetryDelays is the automatic-reconnect schedule: retry at once,
// then after 2, 10 and 30 seconds, then give up.
var DefaultRetryDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

type reconnector struct {
	mu      sync.Mutex
	delays  []time.Duration
	attempt int
}

func newReconnector(config *HubConfig) *reconnector {
	return &reconnector{delays: config.RetryDelays}
}

// nextDelay returns the wait before the next attempt, or false once the
// schedule is exhausted.
func (r *reconnector) nextDelay() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempt >= len(r.delays) {
		return 0, false
	}
	d := r.delays[r.attempt]
	r.attempt++
	return d, true
}

func (r *reconnector) attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}

func (r *reconnector) reset() {
	r.mu.Lock()
	r.attempt = 0
	r.mu.Unlock()
}
