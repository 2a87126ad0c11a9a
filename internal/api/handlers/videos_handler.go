package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"video-share-service/internal/api/middleware"
	"video-share-service/internal/domain/entities"
	"video-share-service/internal/services"
)

// MaxUploadSize bounds a single upload.
const MaxUploadSize int64 = 2 << 30

// VideoAPI is the part of the video service the HTTP layer uses.
type VideoAPI interface {
	Upload(ctx context.Context, userID, fileName string, body io.Reader, size int64) (*entities.UploadResponse, error)
	GetVideo(ctx context.Context, videoID uuid.UUID, viewer services.Viewer) (*entities.Video, error)
	PresignedURL(ctx context.Context, videoID uuid.UUID, quality string, viewer services.Viewer) (*entities.VideoURLResponse, error)
}

type VideosHandler struct {
	videos VideoAPI
}

func NewVideosHandler(videos VideoAPI) *VideosHandler {
	return &VideosHandler{videos: videos}
}

func viewerFrom(c *gin.Context) services.Viewer {
	return services.Viewer{
		UserID:   c.GetString(middleware.ContextUserID),
		Username: c.GetString(middleware.ContextUsername),
	}
}

func videoIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid video id")
		return uuid.Nil, false
	}
	return id, true
}

// Upload accepts a multipart "file" and queues it for transcoding.
func (h *VideosHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "missing or invalid file")
		return
	}
	if header.Size > MaxUploadSize {
		badRequest(c, fmt.Sprintf("file too large, limit is %dMB", MaxUploadSize>>20))
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	resp, err := h.videos.Upload(c.Request.Context(), c.GetString(middleware.ContextUserID), header.Filename, file, header.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *VideosHandler) Get(c *gin.Context) {
	id, ok := videoIDParam(c)
	if !ok {
		return
	}
	video, err := h.videos.GetVideo(c.Request.Context(), id, viewerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// URL returns a presigned playback URL for ?quality=.
func (h *VideosHandler) URL(c *gin.Context) {
	id, ok := videoIDParam(c)
	if !ok {
		return
	}
	quality := c.Query("quality")
	if quality == "" {
		badRequest(c, "quality is required")
		return
	}
	resp, err := h.videos.PresignedURL(c.Request.Context(), id, quality, viewerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
