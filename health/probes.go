package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// PingChecker reports a critical dependency through a ping function.
// A failed ping is unhealthy; a ping slower than the threshold is degraded.
type PingChecker struct {
	name string
	ping func(context.Context) error
	slow time.Duration
}

// NewPingChecker creates a checker around ping. A zero slow threshold
// disables the latency check.
func NewPingChecker(name string, ping func(context.Context) error, slow time.Duration) *PingChecker {
	return &PingChecker{name: name, ping: ping, slow: slow}
}

// Name returns the name of this checker.
func (p *PingChecker) Name() string { return p.name }

// Check pings the dependency.
func (p *PingChecker) Check(ctx context.Context) Result {
	start := time.Now()
	err := p.ping(ctx)
	latency := time.Since(start)
	details := map[string]any{"latency": latency.String()}

	switch {
	case err != nil:
		return Unhealthy(p.name+" unreachable", err).WithDetails(details)
	case p.slow > 0 && latency > p.slow:
		return Degraded(fmt.Sprintf("%s slow (%s)", p.name, latency), nil).WithDetails(details)
	default:
		return Healthy(p.name + " reachable").WithDetails(details)
	}
}

// UpstreamChecker probes the upstream base URL. It never reports
// unhealthy: cached and stale copies keep serving while upstream is down.
type UpstreamChecker struct {
	name   string
	url    string
	client *http.Client
}

// NewUpstreamChecker creates a checker that sends HEAD to url. A nil client
// uses http.DefaultClient.
func NewUpstreamChecker(name, url string, client *http.Client) *UpstreamChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &UpstreamChecker{name: name, url: url, client: client}
}

// Name returns the name of this checker.
func (u *UpstreamChecker) Name() string { return u.name }

// Check probes the upstream.
func (u *UpstreamChecker) Check(ctx context.Context) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.url, nil)
	if err != nil {
		return Degraded("invalid upstream url", err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return Degraded(u.name+" unreachable, serving from cache", err)
	}
	_ = resp.Body.Close()

	details := map[string]any{"status": resp.StatusCode, "url": u.url}
	if resp.StatusCode >= 500 {
		return Degraded(fmt.Sprintf("%s returned %d, serving from cache", u.name, resp.StatusCode), nil).WithDetails(details)
	}
	return Healthy(u.name + " reachable").WithDetails(details)
}
