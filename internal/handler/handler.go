// Package handler maps the REST surface onto the domain services.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"booking-api/internal/apperr"
	"booking-api/internal/auth"
	"booking-api/internal/booking"
	"booking-api/internal/catalog"
	"booking-api/internal/identity"
	"booking-api/internal/middleware"
	"booking-api/internal/model"
	"booking-api/internal/reminder"
	"booking-api/internal/sentry"
)

type Runner interface {
	Run(ctx context.Context, trigger string) (booking.SweepResult, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	CronSecret     string
	CookieSecure   bool
	CORSOrigins    []string
	TrustedProxies []string
}

type Handler struct {
	identity  *identity.Service
	catalog   *catalog.Service
	booking   *booking.Service
	reminders Runner
	store     Pinger
	sentry    sentry.Reporter
	limiter   *middleware.RateLimiter
	log       *slog.Logger
	cfg       Config
}

func New(
	id *identity.Service,
	cat *catalog.Service,
	bk *booking.Service,
	reminders Runner,
	store Pinger,
	report sentry.Reporter,
	limiter *middleware.RateLimiter,
	logger *slog.Logger,
	cfg Config,
) *Handler {
	if report == nil {
		report = sentry.Nop{}
	}
	if limiter == nil {
		limiter = middleware.NewRateLimiter(5, 10)
	}
	return &Handler{
		identity:  id,
		catalog:   cat,
		booking:   bk,
		reminders: reminders,
		store:     store,
		sentry:    report,
		limiter:   limiter,
		log:       logger,
		cfg:       cfg,
	}
}

// Routes builds the router. Only TrustedProxies may set the client IP through
// forwarding headers; everyone else is keyed by the peer address.
func (h *Handler) Routes() (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(h.cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), middleware.Logger(h.log))
	if len(h.cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(h.cfg.CORSOrigins))
	}

	api := r.Group("/api")

	health := api.Group("/health")
	health.GET("/liveness", h.liveness)
	health.GET("/readiness", h.readiness)

	authn := middleware.Authenticate(h.identity, h.cfg.CookieSecure)
	admin := middleware.RequireRoles(model.RoleAdmin)
	limited := middleware.RateLimit(h.limiter)

	a := api.Group("/auth")
	a.POST("/register", limited, h.register)
	a.POST("/login", limited, h.login)
	a.POST("/logout", h.logout)
	a.GET("/checkAuth", authn, h.checkAuth)
	a.POST("/google/:token", limited, h.federated("google"))
	a.POST("/facebook/:token", limited, h.federated("facebook"))

	pw := api.Group("/password")
	pw.POST("/forgot", limited, h.forgotPassword)
	pw.POST("/reset/:token", limited, h.resetPassword)

	sv := api.Group("/services", authn)
	sv.GET("", middleware.RequireRoles(model.RoleAdmin, model.RoleUser), h.listServices)
	sv.POST("", admin, h.createService)
	sv.PUT("/:id", admin, h.updateService)
	sv.DELETE("/:id", admin, h.deleteService)

	api.POST("/appointements/send-reminders", middleware.CronSecret(h.cfg.CronSecret), h.sendReminders)
	ap := api.Group("/appointements", authn)
	ap.POST("", h.createAppointment)
	ap.GET("", admin, h.listAppointments)
	ap.GET("/date", admin, h.appointmentsByDate)
	ap.GET("/user", h.myAppointments)
	ap.GET("/stats", admin, h.appointmentStats)
	ap.PUT("/cancel/:id", h.transition(booking.ActionCancel))
	ap.PUT("/approve/:id", admin, h.transition(booking.ActionApprove))
	ap.PUT("/reject/:id", admin, h.transition(booking.ActionReject))
	ap.PUT("/reset/:id", admin, h.transition(booking.ActionReset))

	u := api.Group("/user", authn, admin)
	u.GET("", h.listUsers)
	u.PUT("/block/:id", h.blockUser)
	u.PUT("/unblock/:id", h.unblockUser)

	return r, nil
}

// ----- errors -----

func writeError(c *gin.Context, status int, code, msg string, details map[string]string) {
	resp := gin.H{"error": code, "message": msg}
	if len(details) > 0 {
		resp["details"] = details
	}
	c.AbortWithStatusJSON(status, resp)
}

// fail maps a domain error onto the response. Unknown errors are reported
// and hidden behind a generic 500.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, reminder.ErrSweepInProgress) {
		writeError(c, http.StatusConflict, "sweep_in_progress", err.Error(), nil)
		return
	}
	status, code := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		c.Error(err)
		h.toSentry(c, op, err)
		writeError(c, status, code, "internal server error", nil)
		return
	}
	writeError(c, status, code, err.Error(), apperr.Details(err))
}

func (h *Handler) toSentry(c *gin.Context, op string, err error) {
	tags := map[string]string{"handler": op, "method": c.Request.Method, "route": c.FullPath()}
	if reqID := c.GetHeader("X-Request-ID"); reqID != "" {
		tags["request_id"] = reqID
	}
	h.sentry.Capture(err, sentry.LevelError, tags)
}

// bind decodes a JSON body, turning decode failures into a 400.
func bind(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperr.Invalid("body", "malformed JSON")
	}
	return nil
}

func caller(c *gin.Context) auth.Identity {
	id, _ := middleware.Identity(c)
	return id
}
