package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/realaashishly/Social-Bot/internal/common"
	"github.com/realaashishly/Social-Bot/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// lookupUser resolves the :tg_id path param. It writes the error response
// itself and returns nil when the request cannot continue.
func (h *Handler) lookupUser(c *gin.Context) *models.User {
	tgID, err := strconv.ParseInt(c.Param("tg_id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid telegram id")
		return nil
	}

	u, err := h.Users.GetByTelegramID(c.Request.Context(), tgID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.Fail(c, http.StatusNotFound, 40401, "user not found")
		return nil
	}
	if err != nil {
		h.Log.Error("load user", zap.Int64("telegram_id", tgID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return nil
	}
	return u
}

func (h *Handler) GetUser(c *gin.Context) {
	u := h.lookupUser(c)
	if u == nil {
		return
	}
	common.OK(c, gin.H{
		"id":                u.ID,
		"telegram_id":       u.TelegramID,
		"first_name":        u.FirstName,
		"last_name":         u.LastName,
		"username":          u.Username,
		"is_bot":            u.IsBot,
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"event_count":       u.EventCount,
		"created_at":        u.CreatedAt,
	})
}

func (h *Handler) ListUserEvents(c *gin.Context) {
	u := h.lookupUser(c)
	if u == nil {
		return
	}
	events, err := h.Events.ListByUser(c.Request.Context(), u.ID)
	if err != nil {
		h.Log.Error("list events", zap.Uint64("user_id", u.ID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	out := make([]gin.H, 0, len(events))
	for _, e := range events {
		out = append(out, gin.H{
			"id":           e.ID,
			"text":         e.Text,
			"link":         e.Link,
			"link_summary": e.LinkSummary,
			"created_at":   e.CreatedAt,
		})
	}
	common.OK(c, gin.H{"events": out})
}
