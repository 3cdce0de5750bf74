package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) setupHttpRoutes() {
	router := httprouter.New()

	handle := func(method, route string, handler httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handler)
	}

	// ratelimited guards the expensive endpoints. We create a unique rate limiter
	// per endpoint, so we don't need httprate.KeyByEndpoint.
	ratelimited := func(method, route string, handler httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handler(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/model", s.httpModel)
	handle("GET", "/api/legend", s.httpLegend)

	ratelimited("POST", "/api/segment", s.httpSegmentStart, 10, time.Minute)
	handle("GET", "/api/runs", s.httpRunsList)
	handle("GET", "/api/run/:id", s.httpRunGet)
	handle("GET", "/api/run/:id/overlay", s.httpRunOverlay)
	handle("GET", "/api/run/:id/mask", s.httpRunMask)
	handle("GET", "/api/run/:id/inspect", s.httpRunInspect)
	handle("GET", "/api/ws/run/:id/progress", s.httpRunProgress)

	s.httpRouter = router
}
