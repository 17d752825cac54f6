// Package service contains the external encoder integration used to
// shrink uploads down to the configured size budget.
package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"tgrelay/relay-api/util"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	audioBitrateKbps = 128

	// Used when ffprobe can't tell us the real duration
	fallbackDurationSec = 60.0

	// Bitrate floor so absurd durations don't produce a zero/negative
	// budget
	minVideoBitrateKbps = 5
)

// Transcoder wraps ffmpeg/ffprobe. When the binary is missing it
// degrades to a passthrough for the whole process lifetime, a broken
// encoder must never block delivery.
type Transcoder struct {
	path      string
	available bool
	timeout   time.Duration
}

func NewTranscoder() *Transcoder {
	t := &Transcoder{
		path:    viper.GetString("ffmpeg.path"),
		timeout: time.Duration(viper.GetInt("ffmpeg.timeout_minutes")) * time.Minute,
	}

	if _, err := exec.LookPath(t.path); err != nil {
		zap.L().Warn("FFmpeg not found, videos over the size budget will be sent as-is", zap.String("path", t.path))
		return t
	}

	t.available = true
	return t
}

func (t *Transcoder) Available() bool {
	return t.available
}

// Shrink re-encodes the video at p so it fits within targetMB and
// returns the path holding the final artifact plus whether a re-encode
// happened. Every failure path falls back to the original file. On a
// successful re-encode the original is deleted and only the new path
// remains.
func (t *Transcoder) Shrink(ctx context.Context, p string, targetMB int64) (string, bool) {
	if !t.available {
		return p, false
	}

	stat, err := os.Stat(p)
	if err != nil {
		zap.L().Warn("Can't stat upload, skipping transcode", zap.Error(err))
		return p, false
	}

	if stat.Size() <= targetMB<<20 {
		return p, false
	}

	duration, err := t.Duration(ctx, p)
	if err != nil {
		zap.L().Warn("Duration probe failed, assuming 60s", zap.Error(err))
		duration = fallbackDurationSec
	}

	out := filepath.Join(os.TempDir(), "shrunk-"+util.RandStr(10)+".mp4")

	if err := t.encode(ctx, p, out, duration, targetMB); err != nil {
		zap.L().Error("FFmpeg failed, sending the original file instead", zap.Error(err))
		os.Remove(out)
		return p, false
	}

	if err := os.Remove(p); err != nil {
		zap.L().Warn("Failed to remove original after transcode", zap.Error(err), zap.String("path", p))
	}

	return out, true
}

// targetBitrateKbps spreads the size budget over the duration, minus a
// fixed audio allocation. Container overhead is ignored, the budget is
// best-effort.
func targetBitrateKbps(targetMB int64, durationSec float64) float64 {
	totalKbps := float64(targetMB) * 8 * 1024 / durationSec

	videoKbps := totalKbps - audioBitrateKbps
	if videoKbps <= 0 {
		videoKbps = minVideoBitrateKbps
	}

	return videoKbps
}

func (t *Transcoder) encode(ctx context.Context, in, out string, durationSec float64, targetMB int64) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	videoKbps := targetBitrateKbps(targetMB, durationSec)

	cmd := exec.CommandContext(ctx, t.path,
		"-i", in,
		"-c:v", "libx264",
		"-b:v", fmt.Sprintf("%.0fk", videoKbps),
		"-maxrate", fmt.Sprintf("%.0fk", videoKbps*1.5),
		"-bufsize", fmt.Sprintf("%.0fk", videoKbps*2),
		"-c:a", "aac",
		"-b:a", "128k",
		"-loglevel", "error",
		"-y", out,
	)

	zap.L().Debug("Running FFmpeg command", zap.String("cmd", cmd.String()))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed, %w (%s)", err, stderr.String())
	}

	return nil
}
