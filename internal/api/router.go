package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hugh/nerlude/internal/access"
	"github.com/hugh/nerlude/internal/api/handlers"
	"github.com/hugh/nerlude/internal/api/middleware"
	"github.com/hugh/nerlude/internal/audit"
	"github.com/hugh/nerlude/internal/auth"
	"github.com/hugh/nerlude/internal/credentials"
	"github.com/hugh/nerlude/internal/invites"
	"github.com/hugh/nerlude/internal/renewal"
	"github.com/hugh/nerlude/internal/storage"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client // optional; only reported by /health
	Logger         *slog.Logger
	AuthService    *auth.Service
	Cipher         *credentials.Cipher
	Store          storage.ObjectStore
	Invites        *invites.Service
	Scanner        *renewal.Scanner
	Limiter        middleware.Limiter // nil disables rate limiting
	AllowedOrigins []string           // CORS allowed origins
	CronSecret     string
	PrimaryKeyID   string // encryption key assigned to new workspaces
	SecureCookies  bool
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.Limiter != nil {
		r.Use(middleware.RateLimit(cfg.Limiter, cfg.Logger))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.CSRFHeader, handlers.CronSecretHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.CSRF(cfg.SecureCookies))

	checker := access.NewChecker(cfg.DB)
	auditor := audit.NewWriter(cfg.DB, cfg.Logger)

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.DB, cfg.SecureCookies, cfg.Logger)
	workspaceHandler := handlers.NewWorkspaceHandler(cfg.DB, checker, auditor, cfg.Invites, cfg.Scanner, cfg.PrimaryKeyID, cfg.Logger)
	projectHandler := handlers.NewProjectHandler(cfg.DB, checker, auditor, cfg.Logger)
	serviceHandler := handlers.NewServiceHandler(cfg.DB, checker, auditor, cfg.Logger)
	credentialHandler := handlers.NewCredentialHandler(cfg.DB, checker, auditor, cfg.Cipher, cfg.Logger)
	documentHandler := handlers.NewDocumentHandler(cfg.DB, checker, auditor, cfg.Logger)
	stackHandler := handlers.NewStackHandler(cfg.DB, checker, auditor, cfg.Logger)
	assetHandler := handlers.NewAssetHandler(cfg.DB, checker, auditor, cfg.Store, cfg.Logger)
	memberHandler := handlers.NewProjectMemberHandler(cfg.DB, checker, auditor, cfg.Invites, cfg.Logger)
	inviteHandler := handlers.NewInviteHandler(cfg.Invites, auditor, cfg.Logger)
	notificationHandler := handlers.NewNotificationHandler(cfg.DB, cfg.Scanner, cfg.CronSecret, cfg.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/ready", healthHandler.Ready)

		// Public endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Get("/invites/{token}", inviteHandler.Preview)

		// Session optional: handlers decide what anonymous callers get
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.AuthService))
			r.Post("/auth/logout", authHandler.Logout)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.With(middleware.OptionalAuth(cfg.AuthService)).
				Post("/check-renewals", notificationHandler.CheckRenewals)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.AuthService))
				r.Get("/", notificationHandler.List)
				r.Post("/read-all", notificationHandler.MarkAllRead)
				r.Patch("/{id}/read", notificationHandler.MarkRead)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.AuthService))

			r.Get("/me", authHandler.Me)
			r.Post("/invites/accept", inviteHandler.Accept)

			r.Route("/workspaces", func(r chi.Router) {
				r.Get("/", workspaceHandler.List)
				r.Post("/", workspaceHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", workspaceHandler.Get)
					r.Patch("/", workspaceHandler.Update)
					r.Delete("/", workspaceHandler.Delete)
					r.Get("/summary", workspaceHandler.Summary)
					r.Get("/audit-logs", workspaceHandler.AuditLogs)
					r.Get("/members", workspaceHandler.ListMembers)
					r.Patch("/members/{userId}", workspaceHandler.UpdateMember)
					r.Delete("/members/{userId}", workspaceHandler.RemoveMember)
					r.Post("/invites", workspaceHandler.Invite)
				})
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", projectHandler.Get)
					r.Patch("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)

					r.Get("/services", serviceHandler.List)
					r.Post("/services", serviceHandler.Create)
					r.Get("/services/{serviceId}", serviceHandler.Get)
					r.Patch("/services/{serviceId}", serviceHandler.Update)
					r.Delete("/services/{serviceId}", serviceHandler.Delete)

					r.Get("/credentials", credentialHandler.List)
					r.Post("/credentials", credentialHandler.Create)
					r.Get("/credentials/{credentialId}", credentialHandler.Get)
					r.Patch("/credentials/{credentialId}", credentialHandler.Update)
					r.Delete("/credentials/{credentialId}", credentialHandler.Delete)

					r.Get("/documents", documentHandler.List)
					r.Post("/documents", documentHandler.Create)
					r.Get("/documents/{documentId}", documentHandler.Get)
					r.Patch("/documents/{documentId}", documentHandler.Update)
					r.Delete("/documents/{documentId}", documentHandler.Delete)

					r.Get("/stacks", stackHandler.List)
					r.Post("/stacks", stackHandler.Create)
					r.Get("/stacks/{stackId}", stackHandler.Get)
					r.Patch("/stacks/{stackId}", stackHandler.Update)
					r.Delete("/stacks/{stackId}", stackHandler.Delete)

					r.Get("/assets", assetHandler.List)
					r.Post("/assets", assetHandler.Upload)
					r.Get("/assets/{assetId}/download", assetHandler.Download)
					r.Delete("/assets/{assetId}", assetHandler.Delete)
					r.Get("/folders", assetHandler.ListFolders)
					r.Post("/folders", assetHandler.CreateFolder)
					r.Delete("/folders/{folderId}", assetHandler.DeleteFolder)

					r.Get("/members", memberHandler.List)
					r.Post("/members", memberHandler.Add)
					r.Patch("/members/{userId}", memberHandler.Update)
					r.Delete("/members/{userId}", memberHandler.Remove)
					r.Post("/invites", memberHandler.Invite)
				})
			})
		})
	})

	return &Router{r}
}
