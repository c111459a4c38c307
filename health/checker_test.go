package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		status Status
		str    string
		code   int
	}{
		{StatusHealthy, "healthy", http.StatusOK},
		{StatusDegraded, "degraded", http.StatusOK},
		{StatusUnhealthy, "unhealthy", http.StatusServiceUnavailable},
		{Status(42), "unknown", http.StatusOK},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		if got := tt.status.HTTPStatus(); got != tt.code {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.str, got, tt.code)
		}
	}
}

func TestPingChecker(t *testing.T) {
	ctx := context.Background()

	ok := NewPingChecker("store", func(context.Context) error { return nil }, time.Second)
	if r := ok.Check(ctx); r.Status != StatusHealthy {
		t.Errorf("healthy ping = %v", r.Status)
	}

	pingErr := errors.New("connection refused")
	down := NewPingChecker("store", func(context.Context) error { return pingErr }, time.Second)
	r := down.Check(ctx)
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, pingErr) {
		t.Errorf("failed ping = %v, %v; want unhealthy", r.Status, r.Error)
	}

	slow := NewPingChecker("store", func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	}, time.Millisecond)
	if r := slow.Check(ctx); r.Status != StatusDegraded {
		t.Errorf("slow ping = %v, want degraded", r.Status)
	}

	if ok.Name() != "store" {
		t.Errorf("Name() = %q", ok.Name())
	}
}

func TestUpstreamChecker(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer healthy.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	ctx := context.Background()

	if r := NewUpstreamChecker("upstream", healthy.URL, nil).Check(ctx); r.Status != StatusHealthy {
		t.Errorf("4xx upstream = %v, want healthy", r.Status)
	}
	if r := NewUpstreamChecker("upstream", failing.URL, nil).Check(ctx); r.Status != StatusDegraded {
		t.Errorf("5xx upstream = %v, want degraded", r.Status)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	if r := NewUpstreamChecker("upstream", url, nil).Check(ctx); r.Status != StatusDegraded {
		t.Errorf("unreachable upstream = %v, want degraded", r.Status)
	}
}

func TestCheckerFunc(t *testing.T) {
	c := NewCheckerFunc("custom", func(ctx context.Context) Result {
		return Degraded("meh", nil)
	})
	if c.Name() != "custom" {
		t.Errorf("Name() = %q", c.Name())
	}
	if r := c.Check(context.Background()); r.Status != StatusDegraded {
		t.Errorf("Check() = %v", r.Status)
	}
}
