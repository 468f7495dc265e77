package debrid

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mescon/Cachearr/internal/domain"
	"github.com/mescon/Cachearr/internal/logger"
	"github.com/mescon/Cachearr/internal/torrent"
)

// magnetTracker is the single announce URL appended to every magnet, pre-escaped.
const magnetTracker = "udp%3A%2F%2Ftracker.openbittorrent.com%3A80"

// BuildMagnetLink returns magnet:?xt=urn:btih:<hash>&dn=<escaped name>&tr=<tracker>.
func BuildMagnetLink(hash domain.InfoHash, name string) string {
	return "magnet:?xt=urn:btih:" + hash.String() +
		"&dn=" + url.QueryEscape(name) +
		"&tr=" + magnetTracker
}

// IsAlreadyPresent reports whether the account already holds hash.
// Listing failures are logged and reported as not present.
func (c *Client) IsAlreadyPresent(ctx context.Context, hash domain.InfoHash) bool {
	torrents, err := c.ListTorrents(ctx)
	if err != nil {
		logger.Errorf("Error while checking existing torrents: %v", err)
		return false
	}
	for _, t := range torrents {
		if hash.Equal(t.Hash) {
			return true
		}
	}
	return false
}

// SubmitMagnet adds magnet to the account and returns the new torrent ID.
func (c *Client) SubmitMagnet(ctx context.Context, magnet string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/torrents/addMagnet", url.Values{"magnet": {magnet}})
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(body, "id")
	if !id.Exists() || id.String() == "" {
		return "", fmt.Errorf("%w: %s", ErrUnexpectedResponse, strings.TrimSpace(string(body)))
	}
	return id.String(), nil
}

// SelectAllFiles selects every file of torrent id and verifies the selection
// took: success requires the selected count to equal the file count.
func (c *Client) SelectAllFiles(ctx context.Context, id string) error {
	info, err := c.GetTorrentInfo(ctx, id)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(info.Files))
	for _, f := range info.Files {
		ids = append(ids, strconv.Itoa(f.ID))
	}
	form := url.Values{"files": {strings.Join(ids, ",")}}
	if _, err := c.do(ctx, http.MethodPost, "/torrents/selectFiles/"+url.PathEscape(id), form); err != nil {
		return err
	}
	logger.Infof("All files selected: %d files", len(ids))

	info, err = c.GetTorrentInfo(ctx, id)
	if err != nil {
		return err
	}
	selected, total := info.SelectedCount(), len(info.Files)
	logger.Infof("Files actually selected: %d/%d", selected, total)
	logger.Debugf("Torrent %s status %q (finished: %v)", id, info.Status, c.downloadedStatus != "" && info.Status == c.downloadedStatus)

	if selected != total {
		return fmt.Errorf("%w: %d/%d", ErrIncompleteSelection, selected, total)
	}
	return nil
}

// AddResult describes a successful AddTorrent.
type AddResult struct {
	Hash           domain.InfoHash
	AlreadyPresent bool
	TorrentID      string
}

// AddTorrent pushes the torrent file at path into the account if Real-Debrid
// already has it downloaded. An already-present hash succeeds without a new
// submission. Nothing is retried.
func (c *Client) AddTorrent(ctx context.Context, path, name string) (AddResult, error) {
	logger.Infof("Checking status for: %s", name)
	hash, err := torrent.ComputeInfoHash(path)
	if err != nil {
		return AddResult{}, err
	}
	return c.AddHash(ctx, hash, name)
}

// AddHash is AddTorrent for an already computed hash.
func (c *Client) AddHash(ctx context.Context, hash domain.InfoHash, name string) (AddResult, error) {
	result := AddResult{Hash: hash}

	if c.IsAlreadyPresent(ctx, hash) {
		logger.Infof("Torrent is already present on your Real-Debrid account: %s", name)
		result.AlreadyPresent = true
		return result, nil
	}

	if status := c.CheckInstantAvailability(ctx, hash); status != domain.AvailabilityDownloaded {
		logger.Infof("The torrent is not available on Real-Debrid or not yet downloaded (%s)", status)
		return result, ErrNotCached
	}

	logger.Infof("The torrent is available. Adding to your account...")
	id, err := c.SubmitMagnet(ctx, BuildMagnetLink(hash, name))
	if err != nil {
		logger.Errorf("Error while adding the torrent: %v", err)
		logErrorDetails(err)
		return result, err
	}
	result.TorrentID = id
	logger.Infof("Torrent successfully added. ID: %s", id)

	if err := c.SelectAllFiles(ctx, id); err != nil {
		logger.Errorf("Error while selecting files: %v", err)
		logErrorDetails(err)
		return result, err
	}
	return result, nil
}
