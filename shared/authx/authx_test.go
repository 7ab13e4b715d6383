package authx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseRoles(t *testing.T) {
	claims := map[string]any{
		"roles": []any{"admin", "operator"},
		"scp":   "read write",
	}
	roles := parseRoles(claims)
	if len(roles) < 3 {
		t.Fatalf("expected roles to include entries, got %v", roles)
	}
}

func TestJWKSCacheRefreshIndexesKeysByKID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"keys":[
			{"kty":"oct","kid":"gate-key","k":"c2VjcmV0c2VjcmV0c2VjcmV0"},
			{"kty":"oct","k":"bm8ta2lkLWtleS1za2lwcGVk"}
		]}`))
	}))
	defer srv.Close()

	cache := NewJWKSCache(srv.URL, time.Minute, srv.Client())

	key, err := cache.GetKey(context.Background(), "gate-key")
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if key == nil {
		t.Fatalf("expected raw key material for gate-key")
	}

	if _, err := cache.GetKey(context.Background(), "missing"); err == nil {
		t.Fatalf("expected unknown kid error")
	}
}

func TestNewJWTVerifierValidation(t *testing.T) {
	if _, err := NewJWTVerifier("", "aud", "", 60, 0); err == nil {
		t.Fatalf("expected error for missing issuer")
	}
}
