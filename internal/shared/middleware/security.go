package middleware

import (
	"net"
	"net/http"
	"strings"
)

// HSTS tells clients to use HTTPS for a year, subdomains included. It also
// sets the standard no-sniff and no-frame headers on every API response.
func HSTS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// RedirectToHTTPS serves the plain-HTTP listener when TLS is on. Hosts not
// in allowedHosts get a 400 so the redirect target cannot be poisoned.
// Health checks stay reachable over HTTP.
func RedirectToHTTPS(allowedHosts []string, httpsPort string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		if !IsHostAllowed(r.Host, allowedHosts) {
			http.Error(w, "Invalid host", http.StatusBadRequest)
			return
		}

		host := hostname(r.Host)
		switch {
		case httpsPort != "" && httpsPort != "443":
			host = net.JoinHostPort(host, httpsPort)
		case strings.Contains(host, ":"):
			host = "[" + host + "]"
		}
		http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

// IsHostAllowed reports whether host names one of allowedHosts, ignoring
// ports and case on both sides. An empty list allows every host.
func IsHostAllowed(host string, allowedHosts []string) bool {
	if len(allowedHosts) == 0 {
		return true
	}

	want := hostname(host)
	for _, allowed := range allowedHosts {
		if hostname(allowed) == want {
			return true
		}
	}
	return false
}

// hostname strips the port and IPv6 brackets from a Host header value.
func hostname(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}
