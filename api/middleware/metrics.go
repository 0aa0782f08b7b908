package middleware

import (
	"net/http"
	"time"
)

type requestObserver interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
}

// Metrics records one observation per request, labelled by the matched chi route.
func Metrics(observer requestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if observer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			// the route pattern is only complete once routing has finished
			observer.ObserveRequest(r.Method, routePattern(r), rec.status, time.Since(start))
		})
	}
}
