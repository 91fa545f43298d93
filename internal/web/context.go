package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sievert/ingreso/internal/core"
)

// withRequestMetadata adds the client IP and User-Agent to ctx; both are
// stored with a submission.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.WithRequestMeta(ctx, core.RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
}

// clientIP returns the host part of RemoteAddr, already rewritten by
// TrustedRealIP for requests from trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
