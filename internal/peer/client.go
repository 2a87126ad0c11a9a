package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"time"

	"video-share-service/internal/domain/entities"
	"video-share-service/internal/logger"
)

// Paths of the sync surface, relative to a peer endpoint.
const (
	PathUploadFile = "/upload-file"
	PathVideoSync  = "/video-sync"
	PathShareSync  = "/share-sync"
	PathRevoke     = "/share-sync/revoke"
)

// StatusError is returned when a peer answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("peer %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client calls the sync endpoints of other organizations.
type Client struct {
	httpClient *http.Client
	log        logger.Logger
}

// NewClient builds a client. A zero timeout means requests only end when
// their context is cancelled.
func NewClient(timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// UploadFile streams body to the peer as multipart fields "file" and "objectName".
func (c *Client) UploadFile(ctx context.Context, endpoint, objectName string, body io.Reader, contentType string) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeUpload(mw, objectName, body, contentType)
		pw.CloseWithError(err)
	}()

	url := endpoint + PathUploadFile
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if traceID := logger.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}

	if err := c.do(req); err != nil {
		pr.CloseWithError(err)
		return err
	}
	return nil
}

func writeUpload(mw *multipart.Writer, objectName string, body io.Reader, contentType string) error {
	if err := mw.WriteField("objectName", objectName); err != nil {
		return err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(objectName)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("stream %s: %w", objectName, err)
	}
	return mw.Close()
}

// SyncVideo posts replicated video metadata.
func (c *Client) SyncVideo(ctx context.Context, endpoint string, payload entities.VideoSyncRequest) error {
	return c.postJSON(ctx, endpoint+PathVideoSync, payload)
}

// SyncShare posts share metadata. Success means the peer stored a pending sync.
func (c *Client) SyncShare(ctx context.Context, endpoint string, payload entities.ShareSyncRequest) error {
	return c.postJSON(ctx, endpoint+PathShareSync, payload)
}

// RevokeShare posts a revoke notice.
func (c *Client) RevokeShare(ctx context.Context, endpoint string, payload entities.RevokeSyncRequest) error {
	return c.postJSON(ctx, endpoint+PathRevoke, payload)
}

func (c *Client) postJSON(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID := logger.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call peer %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	c.log.WithFields(map[string]interface{}{
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("peer call finished")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{URL: req.URL.String(), StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
