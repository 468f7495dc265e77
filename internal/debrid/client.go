// Package debrid is a thin Real-Debrid REST client covering the calls needed
// to push cached torrents into an account.
package debrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mescon/Cachearr/internal/logger"
)

// DefaultBaseURL is the Real-Debrid REST root.
const DefaultBaseURL = "https://api.real-debrid.com/rest/1.0"

// maxErrorBody bounds how much of an error response is kept for logging.
const maxErrorBody = 4096

var (
	// ErrUnexpectedResponse is returned when a 2xx body lacks the fields a call relies on.
	ErrUnexpectedResponse = errors.New("unexpected response from Real-Debrid")
	// ErrNotCached is returned by AddTorrent when Real-Debrid does not have the torrent downloaded.
	ErrNotCached = errors.New("torrent is not available on Real-Debrid or not yet downloaded")
	// ErrIncompleteSelection is returned when fewer files end up selected than the torrent holds.
	ErrIncompleteSelection = errors.New("not every file was selected")
)

// APIError carries a non-2xx Real-Debrid response.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("real-debrid %s: HTTP %d", e.Endpoint, e.StatusCode)
}

// Torrent is one element of the /torrents listing.
type Torrent struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Hash     string `json:"hash"`
	Status   string `json:"status"`
}

// TorrentFile is a file of a torrent as reported by /torrents/info.
type TorrentFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

// TorrentInfo is the /torrents/info/{id} payload.
type TorrentInfo struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Hash     string        `json:"hash"`
	Status   string        `json:"status"`
	Progress float64       `json:"progress"`
	Files    []TorrentFile `json:"files"`
}

// SelectedCount returns how many files are marked selected.
func (t *TorrentInfo) SelectedCount() int {
	n := 0
	for _, f := range t.Files {
		if f.Selected != 0 {
			n++
		}
	}
	return n
}

// Client talks to Real-Debrid with a bearer token.
type Client struct {
	baseURL          string
	apiKey           string
	downloadedStatus string
	httpClient       *http.Client
}

// NewClient creates a Real-Debrid client. downloadedStatus is the status
// literal Real-Debrid reports for a finished torrent; it is only logged.
// A nil httpClient gets a 60 second timeout.
func NewClient(baseURL, apiKey, downloadedStatus string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		apiKey:           apiKey,
		downloadedStatus: downloadedStatus,
		httpClient:       httpClient,
	}
}

// do sends the request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values) ([]byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("real-debrid %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	return data, nil
}

// ListTorrents returns the account's torrents.
func (c *Client) ListTorrents(ctx context.Context) ([]Torrent, error) {
	data, err := c.do(ctx, http.MethodGet, "/torrents", nil)
	if err != nil {
		return nil, err
	}
	var torrents []Torrent
	if err := json.Unmarshal(data, &torrents); err != nil {
		return nil, fmt.Errorf("%w: /torrents: %v", ErrUnexpectedResponse, err)
	}
	return torrents, nil
}

// GetTorrentInfo fetches one torrent with its file list.
func (c *Client) GetTorrentInfo(ctx context.Context, id string) (*TorrentInfo, error) {
	data, err := c.do(ctx, http.MethodGet, "/torrents/info/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var info TorrentInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: /torrents/info: %v", ErrUnexpectedResponse, err)
	}
	return &info, nil
}

// logErrorDetails prints the server-provided body of an APIError, if any.
func logErrorDetails(err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Body != "" {
		logger.Errorf("Error details: %s", apiErr.Body)
	}
}
