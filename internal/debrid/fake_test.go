package debrid

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeRD is an in-memory Real-Debrid used by the client tests.
type fakeRD struct {
	mu sync.Mutex

	token        string
	torrents     []Torrent
	availability string // raw instantAvailability body
	addMagnet    string // raw addMagnet body; empty means {"id":"T1"}
	addStatus    int
	files        []TorrentFile
	selectable   int // files that actually become selected; -1 means all
	status       string

	calls      map[string]int
	lastMagnet string
	lastFiles  string
}

func newFakeRD() *fakeRD {
	return &fakeRD{
		token:      "rd-token",
		selectable: -1,
		status:     "downloaded",
		calls:      make(map[string]int),
	}
}

func (f *fakeRD) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRD) start(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, f.token, "downloaded", srv.Client())
}

func (f *fakeRD) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad_token","error_code":8}`))
		return
	}

	path := r.URL.Path
	switch {
	case path == "/torrents" && r.Method == http.MethodGet:
		f.calls["list"]++
		writeJSON(w, f.torrents)

	case strings.HasPrefix(path, "/torrents/instantAvailability/"):
		f.calls["availability"]++
		_, _ = w.Write([]byte(f.availability))

	case path == "/torrents/addMagnet" && r.Method == http.MethodPost:
		f.calls["addMagnet"]++
		_ = r.ParseForm()
		f.lastMagnet = r.PostForm.Get("magnet")
		if f.addStatus != 0 {
			w.WriteHeader(f.addStatus)
			_, _ = w.Write([]byte(`{"error":"infringing_file","error_code":35}`))
			return
		}
		body := f.addMagnet
		if body == "" {
			body = `{"id":"T1","uri":"https://api.real-debrid.com/rest/1.0/torrents/info/T1"}`
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(body))

	case strings.HasPrefix(path, "/torrents/info/"):
		f.calls["info"]++
		writeJSON(w, TorrentInfo{
			ID:     strings.TrimPrefix(path, "/torrents/info/"),
			Hash:   "",
			Status: f.status,
			Files:  f.files,
		})

	case strings.HasPrefix(path, "/torrents/selectFiles/") && r.Method == http.MethodPost:
		f.calls["select"]++
		_ = r.ParseForm()
		f.lastFiles = r.PostForm.Get("files")
		for i := range f.files {
			if f.selectable < 0 || i < f.selectable {
				f.files[i].Selected = 1
			}
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func filesN(n int) []TorrentFile {
	files := make([]TorrentFile, n)
	for i := range files {
		files[i] = TorrentFile{ID: i + 1, Path: "/f" + string(rune('a'+i)), Bytes: 100}
	}
	return files
}
