package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"video-share-service/internal/domain/entities"
)

// SyncAPI is the receiving side of the cross-site protocol.
type SyncAPI interface {
	ReceiveShareSync(ctx context.Context, req entities.ShareSyncRequest) (*entities.ShareSync, error)
	ReceiveVideoSync(ctx context.Context, req entities.VideoSyncRequest) (*entities.Video, error)
	ReceiveFile(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) error
	ReceiveRevoke(ctx context.Context, req entities.RevokeSyncRequest) error
}

// SyncHandler serves peer organizations.
type SyncHandler struct {
	sync SyncAPI
}

func NewSyncHandler(sync SyncAPI) *SyncHandler {
	return &SyncHandler{sync: sync}
}

func (h *SyncHandler) ShareSync(c *gin.Context) {
	var req entities.ShareSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid share sync payload: "+err.Error())
		return
	}
	record, err := h.sync.ReceiveShareSync(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received", "syncId": record.ID})
}

func (h *SyncHandler) VideoSync(c *gin.Context) {
	var req entities.VideoSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid video sync payload: "+err.Error())
		return
	}
	if _, err := h.sync.ReceiveVideoSync(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// UploadFile stores a multipart "file" under the "objectName" form field.
func (h *SyncHandler) UploadFile(c *gin.Context) {
	objectName := c.PostForm("objectName")
	header, err := c.FormFile("file")
	if err != nil || objectName == "" {
		badRequest(c, "objectName and file are required")
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	if err := h.sync.ReceiveFile(c.Request.Context(), objectName, file, header.Size, header.Header.Get("Content-Type")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stored", "objectName": objectName})
}

func (h *SyncHandler) Revoke(c *gin.Context) {
	var req entities.RevokeSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid revoke payload: "+err.Error())
		return
	}
	if err := h.sync.ReceiveRevoke(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
