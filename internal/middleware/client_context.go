package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/better-wallet/walletd/internal/logger"
)

// ClientContext attaches the caller's IP and User-Agent to every log line
// written while serving the request
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		args := []any{"client_ip", getIP(r)}
		if ua := r.Header.Get("User-Agent"); ua != "" {
			args = append(args, "user_agent", ua)
		}
		next.ServeHTTP(w, r.WithContext(logger.WithAttrs(r.Context(), args...)))
	})
}

// getIP extracts the client IP from the request.
// X-Forwarded-For can carry "client, proxy1, proxy2"; the first entry wins.
func getIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
