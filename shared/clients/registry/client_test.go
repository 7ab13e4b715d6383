package registry

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gatehouse/shared/config"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(config.Config{
		RegistryAPIURL:    url,
		RegistryTimeoutMS: 2000,
		RegistryRetryMax:  2,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestLookupDocumentsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/documents/8-111-222" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cedula":"8-111-222","status":"active","expires_on":"2027-01-31"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	status, err := client.LookupDocuments(context.Background(), "8-111-222")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if status.Status != "active" || status.ExpiresOn != "2027-01-31" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestLookupDocumentsRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"cedula":"1","status":"active"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	status, err := client.LookupDocuments(context.Background(), "1")
	if err != nil {
		t.Fatalf("lookup after retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if status.Status != "active" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestLookupDocumentsReusesConnectionAcrossRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"cedula":"1","status":"active"}`))
	}))

	var mu sync.Mutex
	conns := 0
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			mu.Lock()
			conns++
			mu.Unlock()
		}
	}
	srv.Start()
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if _, err := client.LookupDocuments(context.Background(), "1"); err != nil {
		t.Fatalf("lookup after retries: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	// One connection total: each error body must be drained and closed
	// before the next attempt for the transport to reuse it.
	mu.Lock()
	defer mu.Unlock()
	if conns != 1 {
		t.Fatalf("expected 1 connection across retries, got %d", conns)
	}
}

func TestLookupDocumentsClientErrorDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if _, err := client.LookupDocuments(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestCircuitBreakerOpensAndResets(t *testing.T) {
	b := newCircuitBreaker(2, 20*time.Millisecond)
	if b.Open() {
		t.Fatal("breaker should start closed")
	}
	b.Fail()
	if b.Open() {
		t.Fatal("breaker should stay closed below threshold")
	}
	b.Fail()
	if !b.Open() {
		t.Fatal("breaker should open at threshold")
	}
	time.Sleep(25 * time.Millisecond)
	if b.Open() {
		t.Fatal("breaker should close after the reset window")
	}
	b.Fail()
	b.Fail()
	b.Success()
	if b.Open() {
		t.Fatal("success should reset the breaker")
	}
}
