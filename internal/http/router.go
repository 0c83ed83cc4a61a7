package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/micro-ha/connectivity-monitor/addon/internal/http/handlers"
)

// NewRouter builds full HTTP routing tree for backend API and static frontend.
func NewRouter(api *handlers.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON)
	r.Use(StripIngressPrefix)
	r.Use(RequestLogger(api))

	r.Get("/healthz", api.Health)
	r.Route("/api", func(apiRouter chi.Router) {
		// The stream is long-lived and must not sit behind the request timeout.
		apiRouter.Get("/stream", api.Stream)

		apiRouter.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(20 * time.Second))
			timed.Get("/status", api.Status)
			timed.Get("/history", api.History)
			timed.Post("/refresh", api.Refresh)
			timed.Get("/events", api.ListEvents)
		})
	})

	r.Get("/*", api.Static)
	r.Get("/", api.Static)
	return r
}
