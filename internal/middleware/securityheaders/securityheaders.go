// Package securityheaders sets the baseline security response headers on
// every response.
package securityheaders

import "net/http"

// Middleware denies framing, disables content-type sniffing and trims the
// referrer sent to third parties.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
