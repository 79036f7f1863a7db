package http

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Route binds one method and path to a handler with its own middlewares.
type Route struct {
	Path        string
	Method      string
	Handler     http.Handler
	Middlewares []func(http.Handler) http.Handler
}

type Router struct {
	router *httprouter.Router
}

type ConfigRouter func(router *Router)

func WithRoutes(routes ...Route) ConfigRouter {
	return func(router *Router) {
		router.AddRoutes(routes...)
	}
}

// WithFallbacks sets the JSON responses for unknown paths and wrong methods.
func WithFallbacks(notFound, methodNotAllowed http.Handler) ConfigRouter {
	return func(router *Router) {
		router.router.NotFound = notFound
		router.router.MethodNotAllowed = methodNotAllowed
	}
}

func NewRouter(configs ...ConfigRouter) Router {
	router := &Router{
		router: httprouter.New(),
	}
	router.router.RedirectTrailingSlash = false

	for _, config := range configs {
		config(router)
	}

	return *router
}

func (r Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// AddRoutes registers routes; route middlewares wrap from last to first so
// the first listed runs outermost.
func (r Router) AddRoutes(routes ...Route) {
	for _, route := range routes {
		handler := route.Handler
		for i := len(route.Middlewares) - 1; i >= 0; i-- {
			handler = route.Middlewares[i](handler)
		}
		r.router.Handler(route.Method, route.Path, handler)
	}
}

// pathParam returns a named segment of the matched route.
func pathParam(r *http.Request, name string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(name)
}
