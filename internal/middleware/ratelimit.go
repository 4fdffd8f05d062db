package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimit throttles clients to limit requests per window, keyed by client
// IP. Buckets live in process memory, so limits apply per instance.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	type window struct {
		count   int
		resetAt time.Time
	}
	var (
		mu      sync.Mutex
		windows = make(map[string]*window)
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIPForRateLimit(r)
			now := time.Now()

			mu.Lock()
			win := windows[key]
			if win == nil || now.After(win.resetAt) {
				win = &window{resetAt: now.Add(per)}
				windows[key] = win
			}
			win.count++
			throttled := win.count > limit
			retryAfter := time.Until(win.resetAt)
			mu.Unlock()

			if throttled {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIPForRateLimit prefers the first valid X-Forwarded-For hop, falling
// back to the connection's remote address.
func clientIPForRateLimit(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		ip := strings.TrimSpace(part)
		if ip != "" && net.ParseIP(ip) != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
