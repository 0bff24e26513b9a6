package middleware

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter kept in Redis under
// rl:{route}:{identity}. Identity is the authenticated actor when one is
// present, otherwise the client IP. A nil client lets every request through.
type RateLimiter struct {
	rc          *redis.Client
	route       string
	limit       int
	window      time.Duration
	trustedCIDR []string
}

func NewRateLimiter(rc *redis.Client, route string, limit int, window time.Duration, trustedCIDR []string) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{rc: rc, route: route, limit: limit, window: window, trustedCIDR: trustedCIDR}
}

func (l *RateLimiter) key(r *http.Request) string {
	if actor, ok := ActorFrom(r.Context()); ok && actor.ID != 0 {
		return fmt.Sprintf("rl:%s:user:%d", l.route, actor.ID)
	}
	return fmt.Sprintf("rl:%s:ip:%s", l.route, clientIPGeneric(r, l.trustedCIDR))
}

// hit increments the window counter and returns the count and time left.
func (l *RateLimiter) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	count, err := l.rc.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := l.rc.Expire(ctx, key, l.window).Err(); err != nil {
			return count, l.window, err
		}
		return count, l.window, nil
	}
	ttl, err := l.rc.TTL(ctx, key).Result()
	if err != nil {
		return count, l.window, err
	}
	if ttl < 0 {
		// counter lost its expiry; restart the window
		_ = l.rc.Expire(ctx, key, l.window).Err()
		ttl = l.window
	}
	return count, ttl, nil
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.rc == nil || l.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		count, ttl, err := l.hit(r.Context(), l.key(r))
		if err != nil {
			log.Printf("[ratelimit] %s: redis error, allowing request: %v", l.route, err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := int64(l.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(l.limit) {
			retryAfter := int(ttl.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"success": false,
				"message": "Too many requests, try again later",
				"data":    map[string]interface{}{"retry_after_seconds": retryAfter},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIPGeneric extracts client IP using X-Forwarded-For / X-Real-IP only when
// the immediate peer is in trustedCIDR.
func clientIPGeneric(r *http.Request, trustedCIDR []string) string {
	remoteHost, _, _ := net.SplitHostPort(r.RemoteAddr)
	remoteIP := net.ParseIP(remoteHost)
	trusted := false
	for _, cidr := range trustedCIDR {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if strings.Contains(cidr, "/") {
			if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
				if remoteIP != nil && ipnet.Contains(remoteIP) {
					trusted = true
					break
				}
			}
			continue
		}
		if ip := net.ParseIP(cidr); ip != nil && remoteIP != nil && ip.Equal(remoteIP) {
			trusted = true
			break
		}
	}
	if trusted {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if len(parts) > 0 {
				return strings.TrimSpace(parts[0])
			}
		}
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			return strings.TrimSpace(xr)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
