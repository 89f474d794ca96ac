package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/ndjson-import/internal/core"
)

// WithRequestMetadata adds client IP and User-Agent to context for run records.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// clientIP strips the port from RemoteAddr (already rewritten by
// TrustedRealIP for proxied requests).
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
