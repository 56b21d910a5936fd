// Package server assembles the HTTP routes and middleware.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/diewo77/chantierpro/internal/auth"
	"github.com/diewo77/chantierpro/internal/gate"
	"github.com/diewo77/chantierpro/internal/handlers"
	"github.com/diewo77/chantierpro/internal/httpx"
	"github.com/diewo77/chantierpro/internal/policy"
	"github.com/diewo77/chantierpro/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	DB       *gorm.DB
	Sessions *auth.Sessions
	Gate     *policy.AuthGate
	Docs     *services.DocumentService
	Logger   *slog.Logger
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(d Deps) http.Handler {
	lg := d.Logger
	if lg == nil {
		lg = slog.Default()
	}

	authH := handlers.NewAuthHandler(d.DB, d.Sessions, lg)
	d.Sessions.SetUserVerifier(authH.ActiveUser)
	docH := handlers.NewDocumentHandler(d.Docs, d.Gate, lg)
	adminH := handlers.NewAdminHandler(d.DB, d.Gate, lg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(lg))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
			lg.Warn("health check failed", "error", err)
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.Sessions.Middleware)

		r.Post("/auth/login", authH.Login)
		r.Post("/auth/logout", authH.Logout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Get("/auth/me", authH.Me)

			r.Route("/documents", func(r chi.Router) {
				r.With(d.Gate.RequirePermission(policy.ResourceDocument, gate.ActionList)).Get("/", docH.List)
				r.With(d.Gate.RequirePermission(policy.ResourceDocument, gate.ActionCreate)).Post("/", docH.Create)

				// Per-document routes authorize against the loaded document.
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", docH.Get)
					r.Post("/", docH.Transition)
					r.Post("/lines", docH.AddLines)
					r.Put("/lines/{lineID}", docH.UpdateLine)
					r.Delete("/lines/{lineID}", docH.RemoveLine)
					r.Put("/autoliquidation", docH.SetReverseCharge)
					r.Get("/vat-breakdown", docH.VATBreakdown)
					r.Get("/events", docH.Events)
					r.Get("/situations", docH.Situations)
					r.Post("/situations", docH.CreateSituation)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(d.Gate.RequireAdmin())
				r.Get("/profiles", adminH.ListProfiles)
				r.Get("/users", adminH.ListUsers)
				r.Put("/users/{id}/profile", adminH.AssignProfile)
			})
		})
	})

	return r
}

// requestLogger logs one line per request once it has been served.
func requestLogger(lg *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			lg.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
