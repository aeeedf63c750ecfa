package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/gin-gonic/gin"
)

type ProfileStore interface {
	Get(ctx context.Context, userID int64) (*domain.Profile, error)
	Update(ctx context.Context, userID int64, profile json.RawMessage) (*domain.Profile, error)
}

type ProfileHandler struct {
	svc         ProfileStore
	defaultUser int64
}

func NewProfileHandler(svc ProfileStore, defaultUser int64) *ProfileHandler {
	return &ProfileHandler{svc: svc, defaultUser: defaultUser}
}

// GET /api/v1/profile?user_id=
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), userID(c, h.defaultUser))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get profile failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

// PUT /api/v1/profile?user_id= 请求体为完整的 profile 对象，同时写入一条历史
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}
	p, err := h.svc.Update(c.Request.Context(), userID(c, h.defaultUser), body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "update profile failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}
