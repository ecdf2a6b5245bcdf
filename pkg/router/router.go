// Package router is a small net/http router with wildcard path segments
// and structured request logging.
package router

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// Router matches METHOD:PATH pairs, where a path segment of "*" matches any
// single segment and a trailing "*" matches the rest of the path.
type Router struct {
	routes   map[string]HandlerFunc // key = METHOD:PATH
	paths    map[string]bool
	prefixes map[string]http.Handler // mounted sub-handlers, by path prefix
	log      *zap.Logger
}

func New(log *zap.Logger) *Router {
	return &Router{
		routes:   make(map[string]HandlerFunc),
		paths:    make(map[string]bool),
		prefixes: make(map[string]http.Handler),
		log:      log,
	}
}

func (r *Router) register(method, path string, handler HandlerFunc) {
	r.routes[method+":"+path] = handler
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)    { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)   { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)    { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc)  { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) { r.register(http.MethodDelete, path, handler) }

// Mount serves every request under prefix with the given handler. Used for
// handlers that do their own routing (metrics, swagger UI).
func (r *Router) Mount(prefix string, h http.Handler) {
	r.prefixes[prefix] = h
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	r.dispatch(lrw, req)

	r.log.Info("request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", lrw.statusCode),
		zap.Duration("elapsed", time.Since(start)))
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	for prefix, h := range r.prefixes {
		if strings.HasPrefix(req.URL.Path, prefix) {
			h.ServeHTTP(w, req)
			return
		}
	}

	if h, ok := r.routes[req.Method+":"+req.URL.Path]; ok {
		h(w, req)
		return
	}

	// Several wildcard patterns can match the same path ("/things/*" and
	// "/things/*/parts"); the one with the most literal segments wins.
	var best string
	bestScore := -1
	for routePath := range r.paths {
		if !strings.Contains(routePath, "*") {
			continue
		}
		if !matchWildcardRoute(req.URL.Path, routePath) {
			continue
		}
		if _, ok := r.routes[req.Method+":"+routePath]; !ok {
			continue
		}
		if score := literalSegments(routePath); score > bestScore {
			best, bestScore = routePath, score
		}
	}
	if best != "" {
		r.routes[req.Method+":"+best](w, req)
		return
	}

	if r.pathKnown(req.URL.Path) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

func (r *Router) pathKnown(path string) bool {
	if r.paths[path] {
		return true
	}
	for routePath := range r.paths {
		if strings.Contains(routePath, "*") && matchWildcardRoute(path, routePath) {
			return true
		}
	}
	return false
}

func literalSegments(routePattern string) int {
	n := 0
	for _, seg := range strings.Split(strings.Trim(routePattern, "/"), "/") {
		if seg != "*" {
			n++
		}
	}
	return n
}

// matchWildcardRoute checks if a request path matches a wildcard route
// pattern. A trailing "*" segment matches any number of remaining segments;
// an interior "*" matches exactly one.
func matchWildcardRoute(requestPath, routePattern string) bool {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")

	if len(routeSegments) > 0 && routeSegments[len(routeSegments)-1] == "*" {
		if len(requestSegments) < len(routeSegments)-1 {
			return false
		}
		for i := 0; i < len(routeSegments)-1; i++ {
			if routeSegments[i] != "*" && requestSegments[i] != routeSegments[i] {
				return false
			}
		}
		return true
	}

	if len(requestSegments) != len(routeSegments) {
		return false
	}
	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			continue
		}
		if requestSegments[i] != routeSegment {
			return false
		}
	}
	return true
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
