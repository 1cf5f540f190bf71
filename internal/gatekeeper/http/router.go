package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"

	_ "github.com/aussiebroadwan/gatekeeper/api" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	AuthService       *service.AuthService
	UserService       *service.UserService
	RolesService      *service.RolesService
	SuperAdminService *service.SuperAdminService

	// Limits must be set before ApplyRoutes; NewRouter fills in the defaults.
	Limits httpx.RateLimits
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger, isDevelopment bool) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Limits:       httpx.DefaultRateLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
		httpx.SecureHeaders(isDevelopment),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerRoles()
	r.registerUsers()
	r.registerSuperAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Gatekeeper RBAC Service API
//	@version		0.1.0
//	@description	Role-based access control: users, roles and the single SuperAdmin.
//	@description
//	@description				Access tokens are JWTs issued by POST /v1/auth/token.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/gatekeeper
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured wraps h with bearer authentication and a per-user limit.
func (r *Router) secured(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(authenticator{r.AuthService}),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService, RolesService: r.RolesService}

	// Brute force protection keyed on the client and the attempted account.
	r.Mux.Handle("POST /v1/auth/token",
		httpx.Chain(http.HandlerFunc(h.HandleToken),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
		),
	)
	r.Mux.Handle("GET /v1/auth/me", r.secured(h.HandleMe, r.Limits.Lenient))
	r.Mux.Handle("GET /v1/auth/roles-options",
		httpx.Chain(http.HandlerFunc(h.HandleRoleOptions),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
}

func (r *Router) registerRoles() {
	h := &RolesHandler{RolesService: r.RolesService}

	r.Mux.Handle("GET /v1/roles", r.secured(h.HandleList, r.Limits.Lenient))
	r.Mux.Handle("POST /v1/roles", r.secured(h.HandleCreate, r.Limits.Moderate))
	r.Mux.Handle("GET /v1/roles/{id}", r.secured(h.HandleGet, r.Limits.Lenient))
	r.Mux.Handle("PUT /v1/roles/{id}", r.secured(h.HandleUpdate, r.Limits.Moderate))
	r.Mux.Handle("DELETE /v1/roles/{id}", r.secured(h.HandleDelete, r.Limits.Moderate))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}

	r.Mux.Handle("GET /v1/users", r.secured(h.HandleList, r.Limits.Lenient))
	r.Mux.Handle("POST /v1/users", r.secured(h.HandleCreate, r.Limits.Moderate))
	r.Mux.Handle("GET /v1/users/{id}", r.secured(h.HandleGet, r.Limits.Lenient))
	r.Mux.Handle("PUT /v1/users/{id}", r.secured(h.HandleUpdate, r.Limits.Moderate))
	r.Mux.Handle("DELETE /v1/users/{id}", r.secured(h.HandleDelete, r.Limits.Moderate))
	r.Mux.Handle("PUT /v1/users/{id}/role/{role_id}", r.secured(h.HandleAssignRole, r.Limits.Moderate))
}

func (r *Router) registerSuperAdmin() {
	h := &SuperAdminHandler{SuperAdminService: r.SuperAdminService}

	// Unauthenticated root of trust: strictest limit.
	r.Mux.Handle("POST /v1/superadmin/init",
		httpx.Chain(http.HandlerFunc(h.HandleInit),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
	r.Mux.Handle("GET /v1/superadmin/users", r.secured(h.HandleList, r.Limits.Moderate))
	r.Mux.Handle("GET /v1/superadmin/users/{id}", r.secured(h.HandleGet, r.Limits.Moderate))
	r.Mux.Handle("DELETE /v1/superadmin/users/{id}", r.secured(h.HandleDeleteUser, r.Limits.Strict))
	r.Mux.Handle("DELETE /v1/superadmin/role", r.secured(h.HandleDeleteRole, r.Limits.Strict))
}

func (r *Router) registerSystem() {
	// Monitoring systems may poll frequently.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.SuperAdminService),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
}
