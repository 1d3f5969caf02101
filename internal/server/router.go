// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tolet/service/internal/auth"
	"github.com/tolet/service/internal/blog"
	"github.com/tolet/service/internal/comment"
	"github.com/tolet/service/internal/contact"
	"github.com/tolet/service/internal/logging"
	appMiddleware "github.com/tolet/service/internal/middleware"
	"github.com/tolet/service/internal/property"
)

// Deps are the handlers and options the router is built from.
type Deps struct {
	Blogs      *blog.Handler
	Properties *property.Handler
	Commets    *comment.Handler
	Contacts   *contact.Handler
	Auth       *auth.Handler

	// StaticDir, when set, is served under /uploads/.
	StaticDir    string
	MaxBodyBytes int64
}

// NewRouter wires middleware and every route.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		// Echo the caller's origin; a literal "*" is rejected by browsers on
		// credentialed requests.
		AllowOriginFunc:  func(*http.Request, string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appMiddleware.SizeLimit(d.MaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	if d.StaticDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.StaticDir))))
	}

	r.Route("/blogs", d.Blogs.Routes)
	r.Route("/property", func(r chi.Router) {
		r.Route("/commets", d.Commets.Routes)
		d.Properties.Routes(r)
	})
	r.Route("/contact", d.Contacts.Routes)
	r.Route("/auth", d.Auth.Routes)

	return r
}
