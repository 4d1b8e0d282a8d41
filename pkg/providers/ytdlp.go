package providers

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/postwright/postwright/pkg/errors"
)

var commandContext = exec.CommandContext

var reelPattern = regexp.MustCompile(`instagram\.com/(?:reel|reels|p)/([A-Za-z0-9_-]+)`)

var audioExts = map[string]bool{
	".m4a": true, ".mp3": true, ".aac": true, ".wav": true,
	".ogg": true, ".flac": true, ".mpega": true,
}

// YTDLP downloads reel audio with the yt-dlp executable.
type YTDLP struct {
	binary  string
	tempDir string
	timeout time.Duration
}

// NewYTDLP creates a downloader writing into tempDir. An empty binary means
// "yt-dlp" on PATH and an empty tempDir means os.TempDir().
func NewYTDLP(binary, tempDir string, timeout time.Duration) *YTDLP {
	if binary == "" {
		binary = "yt-dlp"
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &YTDLP{binary: binary, tempDir: tempDir, timeout: timeout}
}

// ReelID extracts the reel shortcode from an Instagram URL.
func ReelID(url string) (string, bool) {
	m := reelPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Fetch implements Downloader. Only instagram.com URLs are accepted. The
// returned file belongs to the caller.
func (y *YTDLP) Fetch(ctx context.Context, url string) (string, error) {
	if !strings.Contains(url, "instagram.com") {
		return "", errors.Newf(errors.ErrDownload, "unsupported url %q", url)
	}
	if err := os.MkdirAll(y.tempDir, 0o755); err != nil {
		return "", errors.Mark(errors.Wrap(err, "create temp dir"), errors.ErrDownload)
	}

	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	base := "reel-" + uuid.NewString()
	args := []string{
		"--no-warnings",
		"--no-playlist",
		"-f", "bestaudio/best",
		"-x", "--audio-format", "m4a",
		"-o", filepath.Join(y.tempDir, base+".%(ext)s"),
		url,
	}
	cmd := commandContext(ctx, y.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", errors.Newf(errors.ErrDownload, "yt-dlp: %v: %s", err, strings.TrimSpace(string(output)))
	}

	preferred := filepath.Join(y.tempDir, base+".m4a")
	if _, err := os.Stat(preferred); err == nil {
		return preferred, nil
	}
	matches, _ := filepath.Glob(filepath.Join(y.tempDir, base+".*"))
	for _, m := range matches {
		if audioExts[strings.ToLower(filepath.Ext(m))] {
			return m, nil
		}
	}
	return "", errors.New(errors.ErrDownload, "yt-dlp finished without producing an audio file")
}
