package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"gatehouse/shared/config"
	"gatehouse/shared/metricsx"
)

// Client talks to the external PRAIND document registry, the authority on
// contractor documentation expiry.
type Client struct {
	baseURL  string
	token    string
	timeout  time.Duration
	retryMax int
	http     *http.Client
	breaker  *circuitBreaker
}

type DocumentStatus struct {
	Cedula    string `json:"cedula"`
	Status    string `json:"status"`
	ExpiresOn string `json:"expires_on"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func New(cfg config.Config) (*Client, error) {
	if cfg.RegistryAPIURL == "" {
		return nil, errors.New("REGISTRY_API_URL is required")
	}
	timeout := time.Duration(cfg.RegistryTimeoutMS) * time.Millisecond
	return &Client{
		baseURL:  cfg.RegistryAPIURL,
		token:    cfg.RegistryAPIToken,
		timeout:  timeout,
		retryMax: cfg.RegistryRetryMax,
		http:     &http.Client{Timeout: timeout},
		breaker:  newCircuitBreaker(5, 30*time.Second),
	}, nil
}

func (c *Client) LookupDocuments(ctx context.Context, cedula string) (DocumentStatus, error) {
	if c == nil || c.http == nil {
		return DocumentStatus{}, errors.New("registry client not initialized")
	}
	if cedula == "" {
		return DocumentStatus{}, errors.New("cedula is required")
	}
	if c.breaker.Open() {
		return DocumentStatus{}, errors.New("registry circuit open")
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/documents/"+url.PathEscape(cedula), nil)
		if err != nil {
			return DocumentStatus{}, err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.breaker.Fail()
			continue
		}
		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = errors.New("registry service error")
			c.breaker.Fail()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			metricsx.IncRegistryLookupFailure()
			return DocumentStatus{}, errors.New("registry request failed")
		}
		var out DocumentStatus
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			c.breaker.Fail()
			metricsx.IncRegistryLookupFailure()
			return DocumentStatus{}, err
		}
		c.breaker.Success()
		metricsx.IncRegistryLookupSuccess()
		metricsx.ObserveRegistryLookupLatency(time.Since(start))
		return out, nil
	}
	if lastErr == nil {
		lastErr = errors.New("registry request failed")
	}
	metricsx.IncRegistryLookupFailure()
	return DocumentStatus{}, lastErr
}

type circuitBreaker struct {
	mu            sync.Mutex
	failures      int
	openUntil     time.Time
	threshold     int
	resetDuration time.Duration
}

func newCircuitBreaker(threshold int, reset time.Duration) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, resetDuration: reset}
}

func (b *circuitBreaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openUntil.IsZero() {
		return false
	}
	if time.Now().After(b.openUntil) {
		b.openUntil = time.Time{}
		b.failures = 0
		return false
	}
	return true
}

func (b *circuitBreaker) Fail() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = time.Now().Add(b.resetDuration)
	}
}

func (b *circuitBreaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
}
