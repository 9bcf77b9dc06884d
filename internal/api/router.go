package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Route binds a handler to a method and path. Middlewares wrap only this
// route, outermost first.
type Route struct {
	Path        string
	Method      string
	Handler     http.Handler
	Middlewares []func(http.Handler) http.Handler
}

type router struct {
	r *httprouter.Router
}

func newRouter(routes ...[]Route) *router {
	rt := &router{r: httprouter.New()}
	rt.r.HandleMethodNotAllowed = true
	rt.r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	for _, group := range routes {
		rt.add(group...)
	}
	return rt
}

func (rt *router) add(routes ...Route) {
	for _, route := range routes {
		h := route.Handler
		for i := len(route.Middlewares) - 1; i >= 0; i-- {
			h = route.Middlewares[i](h)
		}
		rt.r.Handler(route.Method, route.Path, h)
	}
}

func (rt *router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rt.r.ServeHTTP(w, req)
}
