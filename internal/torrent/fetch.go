// Package torrent downloads .torrent files and derives their info hash.
package torrent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"

	"github.com/mescon/Cachearr/internal/logger"
)

// ContentType is the media type a tracker must declare for a .torrent payload.
const ContentType = "application/x-bittorrent"

// maxTorrentSize bounds the payload read into the temp file.
const maxTorrentSize = 32 << 20

// ErrNotTorrent is returned when the response does not declare ContentType.
var ErrNotTorrent = errors.New("response is not a torrent file")

// Doer is the part of *http.Client the fetcher needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Download fetches link and writes the body to a new *.torrent temp file,
// returning its path. The caller owns the file; prefer WithFile.
func Download(ctx context.Context, client Doer, link string) (string, error) {
	logger.Infof("Downloading .torrent file from: %s", link)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download torrent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to download torrent: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	logger.Debugf("Received Content-Type: %s", contentType)
	if !IsTorrentContentType(contentType) {
		return "", fmt.Errorf("%w: Content-Type %q", ErrNotTorrent, contentType)
	}

	tmp, err := os.CreateTemp("", "cachearr-*.torrent")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	n, copyErr := io.Copy(tmp, io.LimitReader(resp.Body, maxTorrentSize+1))
	closeErr := tmp.Close()
	switch {
	case copyErr != nil:
		err = fmt.Errorf("failed to read torrent body: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("failed to write temp file: %w", closeErr)
	case n > maxTorrentSize:
		err = fmt.Errorf("torrent file exceeds %d bytes", maxTorrentSize)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// WithFile downloads link, hands the temp file path to fn and removes the
// file on every return path, including a panic in fn.
func WithFile(ctx context.Context, client Doer, link string, fn func(path string) error) error {
	path, err := Download(ctx, client, link)
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warnf("Failed to remove temp file %s: %v", path, rmErr)
		}
	}()
	return fn(path)
}

// IsTorrentContentType compares the media type, ignoring parameters and case.
func IsTorrentContentType(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return mediaType == ContentType
}
