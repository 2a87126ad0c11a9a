package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Params is one quality rung passed to the encoder.
type Params struct {
	Height  int
	Bitrate string
	Preset  string
	CRF     int
}

// Encoder turns a source file into one encoded output.
type Encoder interface {
	Run(ctx context.Context, sourcePath, outputPath string, p Params) error
}

// FFmpeg shells out to the ffmpeg binary.
type FFmpeg struct {
	Path string
}

func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path}
}

// Args builds the H.264/AAC command line, keeping aspect ratio with an even width.
func (f *FFmpeg) Args(sourcePath, outputPath string, p Params) []string {
	args := []string{
		"-y",
		"-i", sourcePath,
		"-vf", "scale=-2:" + strconv.Itoa(p.Height),
		"-c:v", "libx264",
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
	}
	if p.Bitrate != "" {
		args = append(args, "-b:v", p.Bitrate)
	}
	return append(args,
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "48000",
		"-ac", "2",
		"-movflags", "+faststart",
		outputPath,
	)
}

func (f *FFmpeg) Run(ctx context.Context, sourcePath, outputPath string, p Params) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.Path, f.Args(sourcePath, outputPath, p)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %dp: %w: %s", p.Height, err, tail(stderr.String(), 512))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
