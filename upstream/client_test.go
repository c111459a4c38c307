package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[1,2]}`)
	}))
	defer srv.Close()

	body, err := NewClient().GetJSON(context.Background(), srv.URL+"/api/product")
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if string(body) != `{"items":[1,2]}` {
		t.Errorf("GetJSON() = %q", body)
	}
}

func TestClient_GetJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"error":"down"}`)
	}))
	defer srv.Close()

	_, err := NewClient().GetJSON(context.Background(), srv.URL)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("GetJSON() error = %v, want *StatusError", err)
	}
	if se.Status != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", se.Status)
	}
	if string(se.Body) != `{"error":"down"}` {
		t.Errorf("Body = %q", se.Body)
	}
	if !IsStatus(err, http.StatusBadGateway) {
		t.Error("IsStatus(502) = false")
	}
	if IsStatus(err, http.StatusNotFound) {
		t.Error("IsStatus(404) = true")
	}
}

func TestClient_GetJSON_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>not json</html>")
	}))
	defer srv.Close()

	_, err := NewClient().GetJSON(context.Background(), srv.URL)
	if !errors.Is(err, ErrMalformedBody) {
		t.Errorf("GetJSON() error = %v, want ErrMalformedBody", err)
	}
}

func TestClient_GetJSON_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient().GetJSON(ctx, srv.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetJSON() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestClient_Forward(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}
		if got := r.Header.Get("X-Trace"); got != "abc" {
			t.Errorf("X-Trace = %q, want abc", got)
		}
		if got := r.Header.Get("X-Hop"); got != "" {
			t.Errorf("X-Hop should be stripped, got %q", got)
		}
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"sku":"A1"}` {
			t.Errorf("body = %q", b)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":7}`)
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("X-Trace", "abc")
	h.Set("Connection", "X-Hop")
	h.Set("X-Hop", "drop me")

	resp, err := NewClient().Forward(context.Background(), http.MethodPost, srv.URL+"/api/product/create", h, strings.NewReader(`{"sku":"A1"}`))
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Errorf("Status = %d, want 201", resp.Status)
	}
	if resp.Header.Get("X-Upstream") != "yes" {
		t.Error("upstream headers should be relayed")
	}
	if string(resp.Body) != `{"id":7}` {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestClient_Forward_ErrorStatusIsNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":"bad sku"}`)
	}))
	defer srv.Close()

	resp, err := NewClient().Forward(context.Background(), http.MethodPost, srv.URL, nil, strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if resp.Status != http.StatusUnprocessableEntity {
		t.Errorf("Status = %d, want 422", resp.Status)
	}
}

func TestClient_WithHTTPClient(t *testing.T) {
	var hits int
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		hits++
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`[]`)),
			Request:    r,
		}, nil
	})}

	body, err := NewClient(WithHTTPClient(hc)).GetJSON(context.Background(), "http://backend.invalid/api/product")
	if err != nil || string(body) != "[]" {
		t.Errorf("GetJSON() = %q, %v", body, err)
	}
	if hits != 1 {
		t.Errorf("transport hits = %d, want 1", hits)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
