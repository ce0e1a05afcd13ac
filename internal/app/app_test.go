package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	conf "github.com/bartek5186/dopi2woo/internal/config"
	"github.com/bartek5186/dopi2woo/internal/db"
	"github.com/bartek5186/dopi2woo/internal/store"
	"github.com/bartek5186/dopi2woo/internal/syncer"
	"github.com/bartek5186/dopi2woo/internal/testutil"
)

const catalogPage = `{"count":2,"next":null,"results":[
 {"meta_id":"M1","name":"Koszulka","active":true,"category":12,
  "products":[{"id":555,"sku":"K-1","price":"99.90","available_stock":4}]},
 {"meta_id":"M2","name":"Bluza","active":false,
  "products":[
   {"id":601,"sku":"B-S","price":"150","available_stock":0,"custom_attributes":[{"attribute":{"name":"Rozmiar"},"value":{"name":"S"}}]},
   {"id":602,"sku":"B-M","price":"150","available_stock":2,"custom_attributes":[{"attribute":{"name":"Rozmiar"},"value":{"name":"M"}}]}
  ]}
]}`

func newDopigo(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/products/all/" || r.Header.Get("Authorization") != "Token key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(catalogPage))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newApp(t *testing.T, baseURL string) *App {
	t.Helper()
	cfg := conf.Default()
	cfg.Dopigo.BaseURL = baseURL
	cfg.Dopigo.RequestsPerMinute = 0
	cfg.Dopigo.APIKey = "key"
	cfg.Dopigo.SkipImages = true
	cfg.ProgressStore = conf.ProgressStoreMemory
	a, err := New(testutil.Logger(), t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestFullSyncAndWebhook(t *testing.T) {
	a := newApp(t, newDopigo(t).URL)
	ctx := context.Background()

	res, err := a.Runner.RunSync(ctx, syncer.KindManual, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Success)

	p, lc, err := a.Store.FindProduct(ctx, "M1")
	require.NoError(t, err)
	require.Equal(t, store.Active, lc)
	assert.Equal(t, db.TypeSimple, p.Type)
	assert.Equal(t, 4, p.StockQuantity)

	pending, err := a.Categories.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{12}, pending)

	v2, _, err := a.Store.FindProduct(ctx, "M2")
	require.NoError(t, err)
	assert.Equal(t, db.TypeVariable, v2.Type)

	// drugi przebieg: bez duplikatów
	_, err = a.Runner.RunSync(ctx, syncer.KindManual, "")
	require.NoError(t, err)
	n, err := a.Store.CountProducts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/stock-update", strings.NewReader(`{"product_id":"602","available_stock":0}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.Web.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	vars, err := a.Store.ListVariations(ctx, v2.ID)
	require.NoError(t, err)
	for _, v := range vars {
		if v.DopigoProductID == "602" {
			assert.Equal(t, 0, v.StockQuantity)
			assert.Equal(t, db.StockOut, v.StockStatus)
		}
	}

	hist, err := a.Runner.History(ctx)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestTriggeredSyncIsPollable(t *testing.T) {
	a := newApp(t, newDopigo(t).URL)

	w := httptest.NewRecorder()
	a.Web.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	require.Equal(t, http.StatusOK, w.Code)
	a.Runner.Wait()

	key := strings.Split(strings.Split(w.Body.String(), `"progress_key":"`)[1], `"`)[0]
	w = httptest.NewRecorder()
	a.Web.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sync/progress/"+key, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
}

func TestUnknownProgressStore(t *testing.T) {
	cfg := conf.Default()
	cfg.ProgressStore = "redis"
	_, err := New(testutil.Logger(), t.TempDir(), cfg)
	assert.Error(t, err)
}
