package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/whobuiltmyroad/backend/internal/handlers"
	"github.com/whobuiltmyroad/backend/internal/middleware"
	"github.com/whobuiltmyroad/backend/internal/ratelimit"
	"github.com/whobuiltmyroad/backend/internal/services"
)

// Deps is everything the route table wires together.
type Deps struct {
	Auth   *handlers.AuthHandler
	Roads  *handlers.RoadsHandler
	Admin  *handlers.AdminHandler
	Search *handlers.SearchHandler
	OSM    *handlers.OSMHandler

	Sessions   *services.SessionService
	Limiter    ratelimit.Limiter
	AdminToken string
}

func SetupRoutes(r *chi.Mux, d Deps) {
	requireAuth := middleware.RequireAuth(d.Sessions)
	optionalAuth := middleware.OptionalAuth(d.Sessions)
	requireAdmin := middleware.RequireAdmin(d.AdminToken)
	readLimit := middleware.ClassRateLimit(d.Limiter, ratelimit.ClassRead)

	// Auth routes
	r.Post("/auth/signup", d.Auth.Signup)
	r.Post("/auth/login", d.Auth.Signin)
	r.Post("/auth/logout", d.Auth.Signout)
	r.With(requireAuth).Get("/auth/me", d.Auth.Me)

	// Public road routes
	r.With(readLimit).Get("/roads", d.Roads.List)
	r.With(readLimit).Get("/roads/map", d.Roads.Map)
	r.With(optionalAuth, readLimit).Get("/roads/{id}", d.Roads.Detail)
	r.With(readLimit).Get("/roads/{id}/feedback", d.Roads.ListFeedback)

	// Authenticated road routes (per-class limits applied in the services)
	r.With(requireAuth).Post("/roads", d.Roads.Create)
	r.With(requireAuth).Put("/roads/{id}", d.Roads.Update)
	r.With(requireAuth).Post("/roads/{id}/image", d.Roads.AttachImage)
	r.With(requireAuth).Post("/roads/{id}/feedback", d.Roads.AddFeedback)

	// Location and OSM lookup
	r.With(optionalAuth).Get("/search", d.Search.Search)
	r.With(optionalAuth).Get("/osm/search", d.OSM.Search)
	r.With(optionalAuth).Get("/osm/way/{id}", d.OSM.Way)

	// Admin moderation routes (static token tier, not user sessions)
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(requireAdmin)
		ar.Get("/pending", d.Admin.Pending)
		ar.Post("/approve/{id}", d.Admin.Approve)
		ar.Delete("/reject/{id}", d.Admin.Reject)
		ar.Delete("/roads/{id}", d.Admin.Delete)
	})

	// Root info
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","message":"Who Built My Road API","data":{"roads":"/roads","map":"/roads/map"}}`))
	})
}
