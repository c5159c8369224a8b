package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/grapadi/points-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware платформы поинтов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/balance", h.GetBalance)
			r.Get("/points", h.GetPointHistory)

			r.Post("/posts", h.CreatePost)
			r.Get("/posts", h.GetPosts)

			r.Post("/redemptions", h.SubmitRedemption)
			r.Get("/redemptions", h.GetRedemptions)
		})
	})

	r.Post("/api/posts/{postID}/view", h.RegisterView)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Get("/api/redemptions/catalog", h.GetCatalog)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(h.requireAdmin)

		r.Put("/posts/{postID}/status", h.SetPostStatus)
		r.Post("/users/{userID}/points", h.AdjustPoints)

		r.Get("/redemptions", h.GetAdminRedemptions)
		r.Get("/redemptions/{requestID}", h.GetAdminRedemption)
		r.Put("/redemptions/{requestID}/status", h.UpdateRedemptionStatus)

		r.Get("/items", h.GetAdminItems)
		r.Post("/items", h.CreateItem)
		r.Put("/items/{itemID}", h.UpdateItem)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSetting)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
