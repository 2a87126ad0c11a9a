package entities

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

const ContentTypeMP4 = "video/mp4"

// containerTypes pins the types of accepted containers; the system mime
// table is inconsistent for them across hosts.
var containerTypes = map[string]string{
	".mp4": ContentTypeMP4,
	".m4v": "video/x-m4v",
	".mov": "video/quicktime",
	".mkv": "video/x-matroska",
	".avi": "video/x-msvideo",
}

// ContentTypeFor returns the content type of an artifact with extension ext.
func ContentTypeFor(ext string) string {
	ext = strings.ToLower(ext)
	if t, ok := containerTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// VideoQuality is one encoded variant of a video.
type VideoQuality struct {
	Name       string `json:"name"`
	Height     int    `json:"height"`
	Bitrate    string `json:"bitrate"`
	Preset     string `json:"preset"`
	CRF        int    `json:"crf"`
	ObjectName string `json:"objectName"`
}

// ObjectName returns the deterministic artifact key of a quality.
func ObjectName(videoID uuid.UUID, qualityName, extension string) string {
	return fmt.Sprintf("%s/%s_%s%s", videoID, videoID, qualityName, extension)
}

// Qualities is stored as a jsonb column.
type Qualities []VideoQuality

// Value implements driver.Valuer.
func (q Qualities) Value() (driver.Value, error) {
	if q == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(q)
}

// Scan implements sql.Scanner.
func (q *Qualities) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*q = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("qualities: unsupported scan type")
	}
	return json.Unmarshal(data, q)
}

// Find returns the quality named name.
func (q Qualities) Find(name string) (VideoQuality, bool) {
	for _, vq := range q {
		if vq.Name == name {
			return vq, true
		}
	}
	return VideoQuality{}, false
}

// Video is a fully transcoded upload. It is only persisted once every quality exists.
type Video struct {
	ID               uuid.UUID `json:"id" db:"id"`
	UserID           string    `json:"userId" db:"user_id"`
	OriginalFileName string    `json:"originalFileName" db:"original_file_name"`
	Extension        string    `json:"extension" db:"extension"`
	Qualities        Qualities `json:"qualities" db:"qualities"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

// VideoURLResponse carries a presigned playback URL.
type VideoURLResponse struct {
	VideoID   uuid.UUID `json:"videoId"`
	Quality   string    `json:"quality"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadResponse is returned when an upload has been queued.
type UploadResponse struct {
	VideoID uuid.UUID `json:"videoId"`
	Status  string    `json:"status"`
}
