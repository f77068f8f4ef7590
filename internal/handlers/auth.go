package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/riotkit-org/backup-e2e/api/v1"
	srvErrors "github.com/riotkit-org/backup-e2e/pkg/errors"
)

// Health reports the server is up
// (GET /health)
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": true})
}

// Login exchanges credentials for a JWT
// (POST /auth/login)
func (h *Handler) Login(c *gin.Context) {
	var req v1.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: "username and password are required"})
		return
	}

	token, expire, err := h.accounts.Login(req.Username, req.Password)
	if err != nil {
		if srvErrors.IsUnauthorizedError(err) {
			c.JSON(http.StatusUnauthorized, v1.ErrorResponse{Error: "incorrect username or password"})
			return
		}
		zap.S().Named("auth_handler").Errorw("failed to issue token", "username", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, v1.ErrorResponse{Error: "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, v1.LoginResponse{
		Status: true,
		Data:   v1.LoginData{Token: token, Expire: expire},
	})
}

// WhoAmI describes the owner of the bearer token
// (GET /auth/whoami)
func (h *Handler) WhoAmI(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || token == "" {
		c.JSON(http.StatusUnauthorized, v1.ErrorResponse{Error: "missing bearer token"})
		return
	}

	account, err := h.accounts.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, v1.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, v1.WhoAmIResponse{
		Status: true,
		Data: v1.WhoAmIData{
			Email:       account.Email,
			Permissions: account.Permissions,
		},
	})
}
