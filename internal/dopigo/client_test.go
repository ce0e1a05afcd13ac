package dopigo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(zerolog.New(io.Discard), Config{BaseURL: srv.URL})
}

func TestFetchToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, authPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "shop" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"token":"abc123"}`)
	})

	tok, err := c.FetchToken(context.Background(), "shop", "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc123", tok)

	_, err = c.FetchToken(context.Background(), "shop", "wrong")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestFetchTokenMissingField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"detail":"ok"}`)
	})
	_, err := c.FetchToken(context.Background(), "u", "p")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestFetchProductsPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token tkn", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		switch r.URL.Query().Get("offset") {
		case "0":
			_, _ = io.WriteString(w, `{"count":3,"next":"https://x/?offset=2","results":[{"meta_id":1},{"meta_id":2}]}`)
		case "2":
			_, _ = io.WriteString(w, `[{"meta_id":3}]`)
		default:
			_, _ = io.WriteString(w, `not json`)
		}
	})

	p, err := c.FetchProductsPage(context.Background(), "tkn", 2, 0)
	require.NoError(t, err)
	assert.True(t, p.Paginated)
	assert.Equal(t, 3, p.Count)
	assert.NotEmpty(t, p.Next)
	assert.Len(t, p.Results, 2)

	p, err = c.FetchProductsPage(context.Background(), "tkn", 2, 2)
	require.NoError(t, err)
	assert.False(t, p.Paginated)
	assert.Len(t, p.Results, 1)

	_, err = c.FetchProductsPage(context.Background(), "tkn", 2, 4)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestFetchProductsPageHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := c.FetchProductsPage(context.Background(), "tkn", 100, 0)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestFetchCategoryFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			return
		}
		_, _ = io.WriteString(w, `<root><list-item/></root>`)
	}))
	defer srv.Close()
	c := NewClient(zerolog.New(io.Discard), Config{})

	body, err := c.FetchCategoryFeed(context.Background(), srv.URL+"/feed.xml")
	require.NoError(t, err)
	assert.Contains(t, string(body), "list-item")

	_, err = c.FetchCategoryFeed(context.Background(), srv.URL+"/empty")
	assert.ErrorIs(t, err, ErrTransport)

	_, err = c.FetchCategoryFeed(context.Background(), "")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestDecodeRecordsSingleObject(t *testing.T) {
	recs, err := DecodeRecords([]byte(`{"meta_id":"M1","products":[]}`))
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
