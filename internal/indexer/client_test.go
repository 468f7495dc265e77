package indexer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cacheJSON = `[
	{"Title":"Film.A.2024","Category":[2000],"Size":1000,"Seeders":5,"Peers":7,"Details":"https://ygg.re/t/1","Link":"http://jackett/dl/1"},
	{"Title":"Album","Category":[3000],"Size":null,"Seeders":null,"Peers":null,"Details":"https://ygg.re/t/2","Link":"http://jackett/dl/2"}
]`

// fakeJackett mimics the dashboard login (cookie + redirect) and the cache API.
func fakeJackett(t *testing.T, password, apiKey string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			if err := r.ParseForm(); err != nil || r.PostForm.Get("password") != password {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "Jackett", Value: "session", Path: "/"})
			http.Redirect(w, r, loginPath, http.StatusFound)
		default:
			if _, err := r.Cookie("Jackett"); err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte("<html>dashboard</html>"))
		}
	})
	mux.HandleFunc(cachePath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != apiKey {
			http.Error(w, "bad key", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(cacheJSON))
	})
	return httptest.NewServer(mux)
}

func TestAuthenticate_Success(t *testing.T) {
	srv := fakeJackett(t, "secret", "key")
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key", "secret", 5*time.Second)
	session, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotNil(t, session.Client().Jar)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	srv := fakeJackett(t, "secret", "key")
	defer srv.Close()

	c := NewClient(srv.URL, "key", "wrong", 5*time.Second)
	session, err := c.Authenticate(context.Background())
	assert.Nil(t, session)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "err = %v", err)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "login", statusErr.Op)
}

func TestAuthenticate_Unreachable(t *testing.T) {
	srv := fakeJackett(t, "secret", "key")
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "key", "secret", time.Second).Authenticate(context.Background())
	assert.Error(t, err)
}

func TestFetchCache(t *testing.T) {
	srv := fakeJackett(t, "secret", "key")
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", 5*time.Second)
	session, err := c.Authenticate(context.Background())
	require.NoError(t, err)

	entries, err := c.FetchCache(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Film.A.2024", entries[0].Title)
	assert.Equal(t, []int{2000}, entries[0].Category)
	require.NotNil(t, entries[0].Seeders)
	assert.Equal(t, int64(5), *entries[0].Seeders)
	assert.Nil(t, entries[1].Size)
}

func TestFetchCache_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "indexer exploded", http.StatusInternalServerError)
			},
			status: http.StatusInternalServerError,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"not":"a list"`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.URL, "key", "", time.Second)
			entries, err := c.FetchCache(context.Background(), &Session{client: srv.Client()})
			require.Error(t, err)
			assert.Nil(t, entries)

			var statusErr *StatusError
			if tt.status != 0 {
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, tt.status, statusErr.StatusCode)
				assert.Contains(t, statusErr.Body, "indexer exploded")
			} else {
				assert.False(t, errors.As(err, &statusErr))
			}
		})
	}
}

func TestFetchCache_Null(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("null"))
	}))
	defer srv.Close()

	entries, err := NewClient(srv.URL, "k", "", time.Second).FetchCache(context.Background(), &Session{client: srv.Client()})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStatusError_Message(t *testing.T) {
	assert.Equal(t, "jackett login: HTTP 401", (&StatusError{Op: "login", StatusCode: 401}).Error())
	assert.Equal(t, "jackett cache: HTTP 500: boom", (&StatusError{Op: "cache", StatusCode: 500, Body: "boom"}).Error())
}
