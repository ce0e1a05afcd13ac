package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	conf "github.com/bartek5186/dopi2woo/internal/config"
	"github.com/bartek5186/dopi2woo/internal/dopigo"
	"github.com/bartek5186/dopi2woo/internal/importer"
	"github.com/bartek5186/dopi2woo/internal/kv"
	"github.com/bartek5186/dopi2woo/internal/progress"
	"github.com/bartek5186/dopi2woo/internal/testutil"
)

type fakeCatalog struct {
	mu         sync.Mutex
	records    []json.RawMessage
	fetchErr   error
	tokenCalls int
	gotToken   string
}

func (f *fakeCatalog) FetchToken(_ context.Context, username, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	if username == "shop" && password == "secret" {
		return "tok-from-login", nil
	}
	return "", fmt.Errorf("%w: HTTP 401", dopigo.ErrTransport)
}

func (f *fakeCatalog) FetchAll(_ context.Context, token string, _ int) (*dopigo.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotToken = token
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &dopigo.Result{Count: len(f.records), TotalCount: len(f.records), Results: f.records}, nil
}

type fakeImporter struct{}

func (fakeImporter) Import(_ context.Context, records []json.RawMessage, _ bool, _ string) *importer.Result {
	res := &importer.Result{Total: len(records)}
	for i := range records {
		res.IDs = append(res.IDs, uint(i+1))
		res.Success++
	}
	return res
}

type env struct {
	runner  *Runner
	catalog *fakeCatalog
	tracker *progress.Tracker
}

func newEnv(t *testing.T, cfg conf.DopigoConfig) *env {
	t.Helper()
	cat := &fakeCatalog{records: []json.RawMessage{json.RawMessage(`{"id":1}`), json.RawMessage(`{"id":2}`)}}
	tr := progress.New(progress.NewMemoryStore(), nil)
	r := NewRunner(testutil.Logger(), cfg, cat, fakeImporter{}, tr, NewHistory(kv.NewMemory()))
	return &env{runner: r, catalog: cat, tracker: tr}
}

func TestRunSyncSuccess(t *testing.T) {
	e := newEnv(t, conf.DopigoConfig{APIKey: "key"})
	ctx := context.Background()
	key := progress.NewKey(time.Now())
	require.NoError(t, e.tracker.Start(ctx, key, 0))

	res, err := e.runner.RunSync(ctx, KindManual, key)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, "key", e.catalog.gotToken)
	assert.Zero(t, e.catalog.tokenCalls)

	rec, ok, err := e.tracker.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, progress.StatusCompleted, rec.Status)
	assert.Equal(t, "Successfully synced 2 products", rec.Message)
	assert.Equal(t, []uint{1, 2}, rec.ProductIDs)

	hist, err := e.runner.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, StatusSuccess, hist[0].Status)
	assert.Equal(t, KindManual, hist[0].Type)
	assert.Equal(t, 2, hist[0].ProductsCount)
	assert.Contains(t, hist[0].Message, "Synced 2/2 products in")
}

func TestRunSyncAutoMessage(t *testing.T) {
	e := newEnv(t, conf.DopigoConfig{APIKey: "key"})
	_, err := e.runner.RunSync(context.Background(), KindAuto, "")
	require.NoError(t, err)
	hist, _ := e.runner.History(context.Background())
	require.Len(t, hist, 1)
	assert.Contains(t, hist[0].Message, "Auto-synced 2/2 products")
}

func TestRunSyncTokenFromLogin(t *testing.T) {
	e := newEnv(t, conf.DopigoConfig{Username: "shop", Password: "secret"})
	_, err := e.runner.RunSync(context.Background(), KindManual, "")
	require.NoError(t, err)
	assert.Equal(t, 1, e.catalog.tokenCalls)
	assert.Equal(t, "tok-from-login", e.catalog.gotToken)
}

func TestRunSyncNoCredentials(t *testing.T) {
	e := newEnv(t, conf.DopigoConfig{})
	_, err := e.runner.RunSync(context.Background(), KindManual, "")
	assert.ErrorIs(t, err, ErrNoCredentials)

	hist, _ := e.runner.History(context.Background())
	require.Len(t, hist, 1)
	assert.Equal(t, StatusError, hist[0].Status)
}

func TestRunSyncFetchFailure(t *testing.T) {
	e := newEnv(t, conf.DopigoConfig{APIKey: "key"})
	e.catalog.fetchErr = fmt.Errorf("fetch products at offset 100: %w", dopigo.ErrTransport)
	ctx := context.Background()
	key := progress.NewKey(time.Now())
	require.NoError(t, e.tracker.Start(ctx, key, 0))

	_, err := e.runner.RunSync(ctx, KindManual, key)
	require.Error(t, err)
	assert.ErrorIs(t, err, dopigo.ErrTransport)

	rec, ok, err := e.tracker.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, progress.StatusError, rec.Status)
	assert.Contains(t, rec.Message, "Failed to fetch products from Dopigo API")

	hist, _ := e.runner.History(ctx)
	require.Len(t, hist, 1)
	assert.Equal(t, StatusError, hist[0].Status)
	assert.Contains(t, hist[0].Message, "Failed to fetch products from Dopigo API")
}

func TestRunSyncEmpty(t *testing.T) {
	e := newEnv(t, conf.DopigoConfig{APIKey: "key"})
	e.catalog.records = nil
	_, err := e.runner.RunSync(context.Background(), KindManual, "")
	assert.ErrorIs(t, err, ErrNoProducts)
	assert.Contains(t, err.Error(), "No products returned from Dopigo API")
}

func TestTriggerReturnsKeyImmediately(t *testing.T) {
	e := newEnv(t, conf.DopigoConfig{APIKey: "key"})
	ctx, cancel := context.WithCancel(context.Background())

	key := e.runner.Trigger(ctx)
	cancel() // anulowanie żądania nie przerywa synchronizacji w tle
	assert.Regexp(t, `^sync_\d+_[0-9a-f]{8}$`, key)

	e.runner.Wait()
	rec, ok, err := e.tracker.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, progress.StatusCompleted, rec.Status)
}

func TestImportRecordsHistory(t *testing.T) {
	e := newEnv(t, conf.DopigoConfig{})
	res := e.runner.ImportRecords(context.Background(), []json.RawMessage{json.RawMessage(`{}`)}, "export.json")
	assert.Equal(t, 1, res.Success)

	hist, _ := e.runner.History(context.Background())
	require.Len(t, hist, 1)
	assert.Equal(t, KindImport, hist[0].Type)
	assert.Contains(t, hist[0].Message, "(export.json)")
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(kv.NewMemory())
	ctx := context.Background()
	for i := 0; i < MaxHistory+5; i++ {
		require.NoError(t, h.Append(ctx, HistoryEntry{Timestamp: int64(i)}))
	}
	list, err := h.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, MaxHistory)
	assert.Equal(t, int64(5), list[0].Timestamp)
	assert.Equal(t, int64(MaxHistory+4), list[len(list)-1].Timestamp)
}

func TestTokenErrorIsTransport(t *testing.T) {
	e := newEnv(t, conf.DopigoConfig{Username: "shop", Password: "wrong"})
	_, err := e.runner.Token(context.Background())
	assert.True(t, errors.Is(err, dopigo.ErrTransport))
}
