package rest

import (
	"database/sql"
	"log/slog"

	"github.com/frahmantamala/clinic-management/internal/audit"
	"github.com/frahmantamala/clinic-management/internal/auth"
	"github.com/frahmantamala/clinic-management/internal/permission"
	"github.com/frahmantamala/clinic-management/internal/role"
	"github.com/frahmantamala/clinic-management/internal/transport/middleware"
	"github.com/frahmantamala/clinic-management/internal/user"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RegisterAllRoutes wires the identity surface under /api/v1. Everything
// past the auth group runs behind the bearer-token middleware; admin
// resources additionally require their authority code.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authHandler *auth.Handler, permissionHandler *permission.Handler, roleHandler *role.Handler, userHandler *user.Handler, auditHandler *audit.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh-token", authHandler.RefreshToken)
			sr.Post("/logout", authHandler.Logout)

			sr.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)
				pr.Get("/me", authHandler.Me)
				pr.Post("/change-password", authHandler.ChangePassword)
			})
		})

		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			pr.Route("/permissions", func(ar chi.Router) {
				ar.Use(authHandler.RequirePermission(permission.ManageAuthority))
				ar.Post("/", permissionHandler.Create)
				ar.Get("/", permissionHandler.List)
				ar.Get("/{id}", permissionHandler.Get)
				ar.Patch("/{id}", permissionHandler.Update)
				ar.Delete("/{id}", permissionHandler.Deactivate)
			})

			pr.Route("/roles", func(ar chi.Router) {
				ar.Use(authHandler.RequirePermission(role.ManageAuthority))
				ar.Post("/", roleHandler.Create)
				ar.Get("/", roleHandler.List)
				ar.Get("/{id}", roleHandler.Get)
				ar.Patch("/{id}", roleHandler.Update)
				ar.Delete("/{id}", roleHandler.Delete)

				ar.Route("/{id}/permissions", func(rp chi.Router) {
					rp.Get("/", roleHandler.ListPermissions)
					rp.Put("/", roleHandler.ReplacePermissions)
					rp.Post("/", roleHandler.AddPermissions)
					rp.Delete("/{permissionId}", roleHandler.RemovePermission)
				})
			})

			pr.Route("/users", func(ar chi.Router) {
				ar.Use(authHandler.RequirePermission(user.ManageAuthority))
				ar.Post("/", userHandler.Create)
				ar.Get("/", userHandler.List)
				ar.Get("/{id}", userHandler.Get)
				ar.Patch("/{id}", userHandler.Update)
				ar.Put("/{id}/roles", userHandler.AssignRoles)
			})

			pr.Route("/audit-logs", func(ar chi.Router) {
				ar.Use(authHandler.RequirePermission(audit.ReadAuthority))
				ar.Get("/", auditHandler.List)
			})
		})
	})
}
