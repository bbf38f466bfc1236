/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request, also attached to notification logs
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/requests/{id}/*   Recurring requests
  /api/jobs/{id}/*       One-time jobs
  /api/pricing/*         Hours and quotes
  /api/subscriptions/*   Subscription updates
  /api/scenarios/*       Demo scenarios
  /                      Endpoint index

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Assignment routes, shared by requests and jobs
		r.Route("/{kind:requests|jobs}/{id}", func(r chi.Router) {
			r.Get("/assignments", h.ListAssignments)
			r.Post("/assignments", h.AssignManually)
			r.Post("/assignment/approve", h.ApproveAssignment)
			r.Post("/assignment/reject", h.RejectAssignment)
		})

		// Pricing routes
		r.Route("/pricing", func(r chi.Router) {
			r.Post("/hours", h.ComputeHours)
			r.Post("/subscription", h.QuoteSubscription)
		})

		r.Patch("/subscriptions/{id}/hours", h.UpdateSubscriptionHours)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Match Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Match Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
<li>POST /api/requests/{id}/assignment/approve</li>
<li>POST /api/requests/{id}/assignment/reject</li>
<li>POST /api/jobs/{id}/assignment/approve</li>
<li>POST /api/jobs/{id}/assignment/reject</li>
<li>POST /api/pricing/hours</li>
<li>POST /api/pricing/subscription</li>
</ul>
</body>
</html>`))
	})

	return r
}
