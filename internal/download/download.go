// Package download stores remote images and videos as temporary files for
// upload.
package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxSize caps a single HTTP download. Telegram bots cannot upload more.
const MaxSize = 50 << 20

// ytDlpFormat prefers a merged mp4 so Telegram can stream it.
const ytDlpFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/mp4"

// File is a downloaded temporary file.
type File struct {
	Path string
}

// Remove deletes the file. Missing files are not an error.
func (f *File) Remove() error {
	if f == nil || f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Downloader fetches media into Dir.
type Downloader struct {
	dir       string
	client    *http.Client
	userAgent string
	ytDlp     string
	log       *slog.Logger

	// command is exec.CommandContext, replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func New(dir, ytDlpPath, userAgent string, timeout time.Duration, log *slog.Logger) *Downloader {
	if dir == "" {
		dir = os.TempDir()
	}
	if ytDlpPath == "" {
		ytDlpPath = "yt-dlp"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Downloader{
		dir:       dir,
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		ytDlp:     ytDlpPath,
		log:       log,
		command:   exec.CommandContext,
	}
}

// Image downloads an image over HTTP.
func (d *Downloader) Image(ctx context.Context, rawURL string) (*File, error) {
	return d.fetch(ctx, rawURL, extFor(rawURL, ".jpg"))
}

// Video downloads a video. Hosted players go through yt-dlp, direct links
// over HTTP.
func (d *Downloader) Video(ctx context.Context, rawURL string) (*File, error) {
	if NeedsYtDlp(rawURL) {
		return d.ytDlpFetch(ctx, rawURL)
	}
	return d.fetch(ctx, rawURL, extFor(rawURL, ".mp4"))
}

// NeedsYtDlp reports whether rawURL points to a video page rather than a file.
func NeedsYtDlp(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	switch host {
	case "youtube.com", "youtu.be", "youtube-nocookie.com", "dailymotion.com", "dai.ly":
		return true
	}
	return false
}

func (d *Downloader) fetch(ctx context.Context, rawURL, ext string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}

	f := &File{Path: d.newPath(ext)}
	out, err := os.Create(f.Path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", f.Path, err)
	}
	n, err := io.Copy(out, io.LimitReader(resp.Body, MaxSize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxSize {
		err = fmt.Errorf("larger than %d bytes", MaxSize)
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("empty body")
	}
	if err != nil {
		_ = f.Remove()
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}

	d.log.Debug("media downloaded", "url", rawURL, "path", f.Path, "bytes", n)
	return f, nil
}

func (d *Downloader) ytDlpFetch(ctx context.Context, rawURL string) (*File, error) {
	f := &File{Path: d.newPath(".mp4")}

	args := []string{
		"-f", ytDlpFormat,
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-warnings",
		"--max-filesize", fmt.Sprintf("%d", MaxSize),
		"-o", f.Path,
		rawURL,
	}
	cmd := d.command(ctx, d.ytDlp, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.log.Debug("running yt-dlp", "url", rawURL, "path", f.Path)
	if err := cmd.Run(); err != nil {
		_ = f.Remove()
		return nil, fmt.Errorf("yt-dlp failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(f.Path)
	if err != nil || info.Size() == 0 {
		_ = f.Remove()
		return nil, fmt.Errorf("yt-dlp produced no file for %s", rawURL)
	}
	return f, nil
}

func (d *Downloader) newPath(ext string) string {
	return filepath.Join(d.dir, "animenews-"+uuid.NewString()+ext)
}

func extFor(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".mp4", ".webm", ".mov":
		return ext
	}
	return fallback
}
