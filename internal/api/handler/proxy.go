package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/hweng-dev/adsplice/internal/proxypool"
)

// ProxyHandler streams upstream segments through a pool-selected egress
// route. It backs the full rewrite mode, where every segment URL in the
// playlist points at this service.
type ProxyHandler struct {
	pool    *proxypool.Pool
	timeout time.Duration
}

// NewProxyHandler creates a new ProxyHandler.
func NewProxyHandler(pool *proxypool.Pool, timeout time.Duration) *ProxyHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProxyHandler{pool: pool, timeout: timeout}
}

// Get handles GET /v1/proxy?url=<url>.
func (h *ProxyHandler) Get(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if !validUpstreamURL(target) {
		Error(w, http.StatusBadRequest, "invalid_url", "url must be an absolute http(s) URL")
		return
	}

	client, report := h.pool.ClientFor("segment", h.timeout)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_url", "url must be an absolute http(s) URL")
		return
	}

	resp, err := client.Do(req)
	if err != nil {
		report(err)
		Error(w, http.StatusBadGateway, "upstream_fetch_failed", "Failed to fetch upstream segment")
		return
	}
	defer resp.Body.Close()
	report(nil)

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
