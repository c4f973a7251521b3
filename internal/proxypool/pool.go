// Package proxypool maintains a pool of outbound egress routes with
// per-route health tracking. Every outbound fetch (probing, playlist and
// segment fetching) goes through a pool-selected route.
package proxypool

import (
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hweng-dev/adsplice/internal/infrastructure/metrics"
)

// Config contains the configuration for a route pool.
type Config struct {
	// RouteURLs are proxy endpoint URLs (http, https or socks5 schemes).
	// Invalid entries are skipped; an empty list is a valid degraded state.
	RouteURLs []string

	// FailureThreshold is the number of consecutive failures before a
	// route enters cooldown.
	FailureThreshold int

	// Cooldown is how long a route is avoided after hitting the threshold.
	Cooldown time.Duration
}

// Route is a selected egress route. The zero value (ID -1 via Select)
// means "direct connection, no proxy".
type Route struct {
	ID       int
	Endpoint *url.URL
}

// Direct reports whether the route bypasses the proxy pool.
func (r Route) Direct() bool {
	return r.Endpoint == nil
}

// RouteHealth is a point-in-time snapshot of one route's state.
type RouteHealth struct {
	ID                  int
	Endpoint            string
	ConsecutiveFailures int
	CoolingDown         bool
	CooldownUntil       time.Time
}

type routeState struct {
	mu                  sync.Mutex
	consecutiveFailures int
	cooldownUntil       time.Time
}

// Pool is a process-wide route pool. Route state is shared across all
// concurrent callers; per-route updates are serialized by a per-route mutex.
type Pool struct {
	endpoints []*url.URL
	states    []*routeState
	threshold int
	cooldown  time.Duration

	mu  sync.Mutex // guards rng
	rng *rand.Rand

	now func() time.Time
}

// New parses the configured route URLs into a pool. Unparseable entries
// are logged and skipped rather than failing startup; the pool may end
// up empty, which callers must tolerate.
func New(cfg Config) *Pool {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}

	p := &Pool{
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}

	for _, raw := range cfg.RouteURLs {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			slog.Warn("skipping invalid proxy route", "route", raw)
			continue
		}
		p.endpoints = append(p.endpoints, u)
		p.states = append(p.states, &routeState{})
	}

	return p
}

// Size returns the number of loaded routes.
func (p *Pool) Size() int {
	return len(p.endpoints)
}

// Select returns a uniformly-random route that is not in cooldown.
// When every route is cooling down it still returns a random route
// rather than failing the caller. The second return is false only when
// the pool is empty.
func (p *Pool) Select(purpose string) (Route, bool) {
	if len(p.endpoints) == 0 {
		return Route{ID: -1}, false
	}

	now := p.now()
	var healthy []int
	for i, st := range p.states {
		st.mu.Lock()
		cooling := now.Before(st.cooldownUntil)
		st.mu.Unlock()
		if !cooling {
			healthy = append(healthy, i)
		}
	}

	var id int
	if len(healthy) > 0 {
		id = healthy[p.intn(len(healthy))]
	} else {
		// Best effort: hand out a cooling route and let the caller
		// report the outcome.
		id = p.intn(len(p.endpoints))
	}

	metrics.ProxySelectionsTotal.WithLabelValues(purpose).Inc()
	return Route{ID: id, Endpoint: p.endpoints[id]}, true
}

// Client returns an *http.Client routed through the given route with the
// given total request timeout. A direct route yields a plain client.
func (p *Pool) Client(r Route, timeout time.Duration) *http.Client {
	c := &http.Client{Timeout: timeout}
	if !r.Direct() {
		c.Transport = &http.Transport{Proxy: http.ProxyURL(r.Endpoint)}
	}
	return c
}

// ClientFor selects a route and returns a ready-to-use client plus a
// report callback. The callback must be invoked once with the outcome of
// the call made through the client.
func (p *Pool) ClientFor(purpose string, timeout time.Duration) (*http.Client, func(err error)) {
	route, ok := p.Select(purpose)
	if !ok {
		// Empty pool: direct client, outcome reporting is a no-op.
		return &http.Client{Timeout: timeout}, func(error) {}
	}

	report := func(err error) {
		if err != nil {
			p.ReportFailure(route.ID)
			return
		}
		p.ReportSuccess(route.ID)
	}
	return p.Client(route, timeout), report
}

// ReportSuccess resets the route's failure counter and clears cooldown.
func (p *Pool) ReportSuccess(id int) {
	if id < 0 || id >= len(p.states) {
		return
	}
	st := p.states[id]
	st.mu.Lock()
	st.consecutiveFailures = 0
	st.cooldownUntil = time.Time{}
	st.mu.Unlock()
	metrics.ProxyReportsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
}

// ReportFailure increments the route's failure counter. At the threshold
// the route enters cooldown and the counter resets.
func (p *Pool) ReportFailure(id int) {
	if id < 0 || id >= len(p.states) {
		return
	}
	st := p.states[id]
	st.mu.Lock()
	st.consecutiveFailures++
	if st.consecutiveFailures >= p.threshold {
		st.cooldownUntil = p.now().Add(p.cooldown)
		st.consecutiveFailures = 0
		slog.Warn("proxy route entering cooldown",
			"route_id", id,
			"endpoint", p.endpoints[id].Host,
			"cooldown", p.cooldown,
		)
	}
	st.mu.Unlock()
	metrics.ProxyReportsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
}

// Health returns a snapshot of every route's state. For observability
// only; it has no side effects.
func (p *Pool) Health() []RouteHealth {
	now := p.now()
	out := make([]RouteHealth, 0, len(p.endpoints))
	for i, st := range p.states {
		st.mu.Lock()
		out = append(out, RouteHealth{
			ID:                  i,
			Endpoint:            p.endpoints[i].Host,
			ConsecutiveFailures: st.consecutiveFailures,
			CoolingDown:         now.Before(st.cooldownUntil),
			CooldownUntil:       st.cooldownUntil,
		})
		st.mu.Unlock()
	}
	return out
}

func (p *Pool) intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(n)
}
