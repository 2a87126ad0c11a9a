package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"video-share-service/internal/api/middleware"
	"video-share-service/internal/domain/entities"
	"video-share-service/internal/workerpool"
)

// ShareAPI is the part of the share manager the HTTP layer uses.
type ShareAPI interface {
	ShareVideo(ctx context.Context, videoID uuid.UUID, actingUserID, targetUsername, targetIP string) (*entities.Share, workerpool.Future, error)
	RevokeShare(ctx context.Context, shareID uuid.UUID, actingUserID string) (workerpool.Future, error)
	ListSharesForVideo(ctx context.Context, videoID uuid.UUID, actingUserID string) ([]entities.Share, error)
	ListReceivedShares(ctx context.Context, username string) ([]entities.Share, error)
}

type SharesHandler struct {
	shares ShareAPI
}

func NewSharesHandler(shares ShareAPI) *SharesHandler {
	return &SharesHandler{shares: shares}
}

// Create shares a video. Cross-site synchronization continues in the
// background after the response.
func (h *SharesHandler) Create(c *gin.Context) {
	videoID, ok := videoIDParam(c)
	if !ok {
		return
	}
	var dto entities.CreateShareDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		badRequest(c, "invalid share request: "+err.Error())
		return
	}

	share, _, err := h.shares.ShareVideo(c.Request.Context(), videoID, c.GetString(middleware.ContextUserID), dto.Username, dto.IP)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, share)
}

func (h *SharesHandler) Revoke(c *gin.Context) {
	shareID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid share id")
		return
	}
	if _, err := h.shares.RevokeShare(c.Request.Context(), shareID, c.GetString(middleware.ContextUserID)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

func (h *SharesHandler) ListForVideo(c *gin.Context) {
	videoID, ok := videoIDParam(c)
	if !ok {
		return
	}
	shares, err := h.shares.ListSharesForVideo(c.Request.Context(), videoID, c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares})
}

// Received lists shares granted to the caller, or to ?username= when given.
func (h *SharesHandler) Received(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		username = c.GetString(middleware.ContextUsername)
	}
	shares, err := h.shares.ListReceivedShares(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares})
}
