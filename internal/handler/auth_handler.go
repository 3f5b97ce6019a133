package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"booking-api/internal/identity"
	"booking-api/internal/middleware"
)

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
	// spelling used by older clients
	RemmberMe bool `json:"remmberMe"`
}

func (h *Handler) startSession(c *gin.Context, s *identity.Session, status int, msg string) {
	var expires time.Time
	if s.Persistent {
		expires = s.ExpiresAt
	}
	middleware.SetSessionCookie(c, s.Token, expires, h.cfg.CookieSecure)
	c.JSON(status, gin.H{"message": msg, "role": s.User.Role})
}

func (h *Handler) register(c *gin.Context) {
	var req identity.RegisterInput
	if err := bind(c, &req); err != nil {
		h.fail(c, "register", err)
		return
	}
	s, err := h.identity.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "register", err)
		return
	}
	h.startSession(c, s, http.StatusCreated, "User registered successfully")
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "login", err)
		return
	}
	s, err := h.identity.Login(c.Request.Context(), req.Email, req.Password, req.RememberMe || req.RemmberMe)
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	h.startSession(c, s, http.StatusOK, "Login successful")
}

func (h *Handler) federated(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := h.identity.Federated(c.Request.Context(), provider, c.Param("token"))
		if err != nil {
			h.fail(c, provider+"_login", err)
			return
		}
		h.startSession(c, s, http.StatusOK, "Login with "+provider+" successful")
	}
}

// logout only clears the cookie; the token stays valid until it expires.
func (h *Handler) logout(c *gin.Context) {
	middleware.ClearSessionCookie(c, h.cfg.CookieSecure)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (h *Handler) checkAuth(c *gin.Context) {
	st, err := h.identity.CheckAuth(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, "check_auth", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ----- password recovery -----

func (h *Handler) forgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := bind(c, &req); err != nil {
		h.fail(c, "forgot_password", err)
		return
	}
	if err := h.identity.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.fail(c, "forgot_password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset link sent to your email"})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := bind(c, &req); err != nil {
		h.fail(c, "reset_password", err)
		return
	}
	if err := h.identity.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		h.fail(c, "reset_password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully"})
}

// ----- users -----

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.identity.ListUsers(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, "list_users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) blockUser(c *gin.Context) {
	if err := h.identity.Block(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		h.fail(c, "block_user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User blocked successfully"})
}

func (h *Handler) unblockUser(c *gin.Context) {
	if err := h.identity.Unblock(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		h.fail(c, "unblock_user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User unblocked successfully"})
}
