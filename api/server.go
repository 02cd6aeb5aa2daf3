/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the web frontend

ROUTE GROUPS:
  /api/auth/login       Public
  /api/auth/*, /api/me  Any signed-in user (RequireAuth)
  /api/collections/*    Signed-in; admin except currentUser
  everything else       Admins only (RequireAuth + RequireAdmin)
  /*                    Static files (frontend), if configured

STATIC FILE SERVING:
  Serves the built web app from RouterOptions.StaticDir.
  Falls back to index.html for client-side routing.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: RequireAuth, RequireAdmin
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	StaticDir      string // empty disables static serving
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Fleetlog-Degraded"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Route("/auth", func(r chi.Router) {
				r.Post("/logout", h.Logout)
				r.Get("/me", h.Me)
				r.Put("/language", h.SetLanguage)
			})

			// Rider routes
			r.Route("/me", func(r chi.Router) {
				r.Get("/mileage", h.ListMyMileage)
				r.With(h.RequireRider).Post("/mileage", h.CreateMyMileage)
				r.With(h.RequireRider).Post("/equipment", h.CreateMyEquipment)
				r.Get("/summary", h.MySummary)
			})

			r.Get("/collections/{name}", h.GetCollection)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdmin)

				r.Get("/dashboard", h.Dashboard)

				r.Route("/riders", func(r chi.Router) {
					r.Get("/", h.ListRiders)
					r.Post("/", h.CreateRider)
					r.Get("/{id}", h.GetRider)
					r.Put("/{id}", h.UpdateRider)
					r.Delete("/{id}", h.DeleteRider)
					r.Get("/{id}/mileage", h.RiderMileage)
				})

				r.Route("/admins", func(r chi.Router) {
					r.Get("/", h.ListAdmins)
					r.Post("/", h.CreateAdmin)
					r.Put("/{id}", h.UpdateAdmin)
					r.Delete("/{id}", h.DeleteAdmin)
				})

				r.Route("/mileage", func(r chi.Router) {
					r.Get("/", h.ListMileage)
					r.Delete("/{id}", h.DeleteMileage)
				})

				r.Route("/equipment", func(r chi.Router) {
					r.Get("/", h.ListEquipment)
					r.Delete("/{id}", h.DeleteEquipment)
				})

				r.Get("/reports/{kind}/export", h.ExportReport)
				r.Put("/collections/{name}", h.PutCollection)
				r.Get("/audit", h.ListAudit)

				// Scenario routes
				r.Route("/scenarios", func(r chi.Router) {
					r.Get("/", h.ListScenarios)
					r.Get("/current", h.GetCurrentScenario)
					r.Post("/load", h.LoadScenario)
				})
			})
		})
	})

	if opts.StaticDir != "" {
		if _, err := os.Stat(opts.StaticDir); err == nil {
			serveStatic(r, opts.StaticDir)
		}
	}

	return r
}

func serveStatic(r chi.Router, dir string) {
	fileServer := http.FileServer(http.Dir(dir))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		fullPath := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		// SPA routing: unknown paths get index.html
		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
