package handlers

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/riotkit-org/backup-e2e/api/v1"
	"github.com/riotkit-org/backup-e2e/internal/services"
)

type Handler struct {
	accounts *services.Accounts
}

func New(accounts *services.Accounts) *Handler {
	return &Handler{
		accounts: accounts,
	}
}

// Register mounts all endpoints on router, which is expected to be the
// /api/stable group.
func (h *Handler) Register(router *gin.RouterGroup) {
	router.GET(v1.HealthPath, h.Health)
	router.POST(v1.LoginPath, h.Login)
	router.GET(v1.WhoAmIPath, h.WhoAmI)
}
