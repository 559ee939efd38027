package middleware

import (
	"log"
	"net/http"
	"time"
)

// responseWriter records the status and body size a handler wrote.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w}
}

// Status is 0 until the handler writes.
func (rw *responseWriter) Status() int {
	return rw.status
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// statusOrOK treats a handler that never wrote as 200, like net/http does.
func (rw *responseWriter) statusOrOK() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// Logging prints one line per request with method, path, status, response
// size, duration and request ID. Successful health probes are not logged.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := wrapResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		status := wrapped.statusOrOK()
		if r.URL.Path == "/health" && status == http.StatusOK {
			return
		}

		log.Printf("%s %s %d %dB %s rid=%s",
			r.Method, r.URL.Path, status, wrapped.bytes,
			time.Since(start).Round(time.Microsecond),
			RequestIDFromContext(r.Context()),
		)
	})
}
