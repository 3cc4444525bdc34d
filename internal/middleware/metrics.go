package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type requestObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

const unmatchedRoute = "unmatched"

var knownMethods = map[string]struct{}{
	http.MethodGet: {}, http.MethodHead: {}, http.MethodPost: {}, http.MethodPut: {},
	http.MethodPatch: {}, http.MethodDelete: {}, http.MethodOptions: {},
}

// Metrics returns middleware that reports each request to observer, labelled by
// route template. Requests for skipPaths (typically the scrape endpoint itself)
// are not reported. Unmatched routes and non-standard methods collapse into
// fixed labels so clients cannot grow label cardinality.
func Metrics(observer requestObserver, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if observer == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if _, ok := skip[route]; ok && route != "" {
			return
		}
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method
		if _, ok := knownMethods[method]; !ok {
			method = "OTHER"
		}
		observer.ObserveHTTPRequest(method, route, c.Writer.Status(), time.Since(start))
	}
}
