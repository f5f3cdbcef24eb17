package middleware

import (
	"net/http"
	"time"
)

type requestObserver interface {
	ObserveRequest(method string, route string, status int, d time.Duration)
}

// Route used for requests no pattern matched, keeps label cardinality bounded
const unmatchedRoute = "unmatched"

// MetricsMiddleware must wrap the ServeMux directly: route label is the matched mux pattern
func MetricsMiddleware(o requestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)

			next.ServeHTTP(sw, r)

			route := r.Pattern
			if route == "" {
				route = unmatchedRoute
			}
			o.ObserveRequest(r.Method, route, sw.status, time.Since(start))
		})
	}
}
