// Package storage keeps generated painting images on local disk and serves them under /uploads/.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// URLPrefix is the public path generated images are served from.
const URLPrefix = "/uploads/"

// MaxDownloadSize caps remote image downloads.
const MaxDownloadSize = 20 << 20

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Local stores images in a directory tree of <dir>/<titleID>/<ideaID>.<ext>.
type Local struct {
	dir    string
	client *http.Client
}

// NewLocal creates dir if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &Local{dir: dir, client: &http.Client{Timeout: 60 * time.Second}}, nil
}

// Dir returns the root directory.
func (l *Local) Dir() string { return l.dir }

// Save writes data and returns its public URL. An empty contentType is sniffed.
func (l *Local) Save(_ context.Context, titleID, ideaID uuid.UUID, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to store empty image for idea %s", ideaID)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))]
	if !ok {
		return "", fmt.Errorf("unsupported image content type %q", contentType)
	}

	titleDir := filepath.Join(l.dir, titleID.String())
	if err := os.MkdirAll(titleDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create title dir: %w", err)
	}

	name := ideaID.String() + ext
	tmp, err := os.CreateTemp(titleDir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(titleDir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finalize image file: %w", err)
	}

	return path.Join(URLPrefix, titleID.String(), name), nil
}

// Download fetches a remote image and stores it like Save.
func (l *Local) Download(ctx context.Context, imageURL string, titleID, ideaID uuid.UUID) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid image URL: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) > MaxDownloadSize {
		return "", fmt.Errorf("image exceeds %d bytes", MaxDownloadSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = ""
	}
	return l.Save(ctx, titleID, ideaID, data, contentType)
}

// Handler serves stored images. Mount it at URLPrefix.
func (l *Local) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(noListing{http.Dir(l.dir)}))
}

// noListing hides directory indexes.
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
