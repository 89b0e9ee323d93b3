package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"course-portal/internal/config"
	"course-portal/internal/handler"
	"course-portal/internal/middleware"
	"course-portal/internal/service"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Security *handler.SecurityHandler
	Catalog  *handler.CatalogHandler
	Session  *handler.SessionHandler
	Flags    *handler.FlagsHandler
	WS       *handler.WSHandler
}

func New(cfg *config.Config, issuer *service.TokenIssuer, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.ClientIdentity(issuer, cfg.CookieSecure))

		// The websocket outlives any request deadline.
		api.Get("/ws", h.WS.Serve)

		api.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(cfg.RequestTimeout))

			api.Route("/auth", func(auth chi.Router) {
				auth.Post("/login", h.Auth.Login)
				auth.Post("/logout", h.Auth.Logout)
				auth.Post("/register", h.Auth.Register)
				auth.Get("/status", h.Auth.Status)
				auth.Post("/validate", h.Auth.Validate)
				auth.Get("/lock-info", h.Auth.LockInfo)
				auth.Get("/remember", h.Auth.Remembered)
				auth.Delete("/remember", h.Auth.Forget)
				auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
			})

			api.With(authMiddleware.RequireAuth).Get("/security/events", h.Security.Events)

			api.With(authMiddleware.RequireAuth).Get("/catalog", h.Catalog.Load)
			api.Get("/catalog/fallback", h.Catalog.Fallback)
			api.Get("/catalog/meta", h.Catalog.Meta)

			api.Post("/session/activity", h.Session.Activity)

			api.With(authMiddleware.RequireAuth).Get("/flags", h.Flags.List)
			api.With(authMiddleware.RequireAuth).Put("/flags/{name}", h.Flags.Set)
			api.With(authMiddleware.RequireAuth).Delete("/flags", h.Flags.Reset)
		})
	})

	return r
}
