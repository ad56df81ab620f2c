package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/realaashishly/Social-Bot/internal/common"
	"github.com/realaashishly/Social-Bot/internal/store/sqlstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	DB     *gorm.DB
	Users  *sqlstore.Users
	Events *sqlstore.Events
	Log    *zap.Logger
}

func NewHandler(db *gorm.DB, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		DB:     db,
		Users:  sqlstore.NewUsers(db),
		Events: sqlstore.NewEvents(db),
		Log:    log,
	}
}

// Ping reports whether the database answers.
func (h *Handler) Ping(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.Log.Warn("ping: database unavailable", zap.Error(err))
		common.Fail(c, http.StatusServiceUnavailable, 50300, "database unavailable")
		return
	}
	common.OK(c, gin.H{"pong": true})
}
