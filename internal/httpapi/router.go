// Package httpapi serves the read-only ops API next to the bot.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/realaashishly/Social-Bot/internal/common"
	"github.com/realaashishly/Social-Bot/internal/config"
	"github.com/realaashishly/Social-Bot/internal/httpapi/handlers"
	"github.com/realaashishly/Social-Bot/internal/httpapi/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))

	h := handlers.NewHandler(db, log)

	r.GET("/ping", h.Ping)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.AdminJWTSecret))
	authGroup.GET("/users/:tg_id", h.GetUser)
	authGroup.GET("/users/:tg_id/events", h.ListUserEvents)
	return r
}
