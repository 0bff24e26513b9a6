package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"paylink/services"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func TestClientIPGeneric_DirectRemote(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	ip := clientIPGeneric(req, nil)
	if ip != "203.0.113.5" {
		t.Fatalf("expected direct remote IP, got %s", ip)
	}
}

func TestClientIPGeneric_TrustedProxyXFF(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "198.51.100.10:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 198.51.100.10")
	// trustedCIDR contains the remote IP
	ip := clientIPGeneric(req, []string{"198.51.100.10"})
	if ip != "203.0.113.7" {
		t.Fatalf("expected X-Forwarded-For first value, got %s", ip)
	}
}

func TestClientIPGeneric_UntrustedProxyIgnoresXFF(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "198.51.100.11:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.8, 198.51.100.11")
	ip := clientIPGeneric(req, []string{"198.51.100.10"})
	if ip != "198.51.100.11" {
		t.Fatalf("expected remote IP when proxy untrusted, got %s", ip)
	}
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	mr, rc := newMiniRedis(t)
	h := NewRateLimiter(rc, "links:create", 2, time.Minute, nil).Middleware(okHandler())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/links", nil)
		req.RemoteAddr = "203.0.113.5:1000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := send(); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}
	rr := send()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" || rr.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected headers %v", rr.Header())
	}
	if !mr.Exists("rl:links:create:ip:203.0.113.5") {
		t.Fatal("expected counter keyed by route and ip")
	}

	mr.FastForward(61 * time.Second)
	if rr := send(); rr.Code != http.StatusOK {
		t.Fatalf("expected window reset, got %d", rr.Code)
	}
}

func TestRateLimiter_KeysByActor(t *testing.T) {
	mr, rc := newMiniRedis(t)
	h := NewRateLimiter(rc, "pay", 1, time.Minute, nil).Middleware(okHandler())

	for _, id := range []uint{1, 2} {
		req := httptest.NewRequest(http.MethodPost, "/v1/pay/x", nil)
		req = req.WithContext(WithActor(req.Context(), services.Actor{ID: id, Role: services.RolePayer}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("actor %d: expected 200, got %d", id, rr.Code)
		}
	}
	if !mr.Exists("rl:pay:user:1") || !mr.Exists("rl:pay:user:2") {
		t.Fatalf("expected per-actor counters, keys=%v", mr.Keys())
	}
}

func TestRateLimiter_NilRedisPassesThrough(t *testing.T) {
	h := NewRateLimiter(nil, "pay", 1, time.Minute, nil).Middleware(okHandler())
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected pass-through, got %d", rr.Code)
		}
	}
}
