package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noltfinance/nolt-ops-api/internal/middleware"
	"github.com/noltfinance/nolt-ops-api/internal/policy"
	"github.com/noltfinance/nolt-ops-api/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login authenticates a staff member
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Refresh rotates the token pair
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Logout invalidates the refresh token
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// allNavigationViews is the full menu; the response marks which entries the
// session's role may open
var allNavigationViews = []string{
	"dashboard", "queue", "loans", "investments", "reports",
	"settings", "users", "security", "form-builder",
}

// Me returns the session identity and the navigation views it may open
func (h *AuthHandler) Me(c *gin.Context) {
	role := middleware.GetUserRole(c)

	navigation := make(map[string]bool, len(allNavigationViews))
	for _, view := range allNavigationViews {
		navigation[view] = policy.CanNavigate(role, view)
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":    middleware.GetUserID(c),
		"role":       role,
		"navigation": navigation,
	})
}
