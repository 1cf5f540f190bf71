package httpx

import (
	"net/http"

	"github.com/unrolled/secure"
)

// SecureHeaders sets the standard hardening headers on every response. In
// development the swagger UI needs inline scripts, so the CSP is relaxed.
func SecureHeaders(isDevelopment bool) Middleware {
	csp := "default-src 'none'; frame-ancestors 'none'"
	if isDevelopment {
		csp = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:"
	}

	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: csp,
		IsDevelopment:         isDevelopment,
	})

	return func(next http.Handler) http.Handler {
		return sec.Handler(next)
	}
}
