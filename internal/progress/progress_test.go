package progress

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartek5186/dopi2woo/internal/testutil"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"gorm":   NewGormStore(testutil.NewDB(t)),
	}
}

func TestTrackerLifecycle(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: time.Unix(1700000000, 0)}
			tr := New(s, c.now)

			require.NoError(t, tr.Start(ctx, "k", 3))
			require.NoError(t, tr.Update(ctx, "k", func(r *Record) {
				r.Processed = 1
				r.Push(RecentItem{Index: 0, Name: "A", Status: StatusProcessing})
			}))

			rec, ok, err := tr.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 3, rec.Total)
			assert.Equal(t, 1, rec.Processed)
			assert.Equal(t, StatusRunning, rec.Status)
			assert.Equal(t, int64(1700000000), rec.StartTime)
			require.Len(t, rec.RecentProducts, 1)

			require.NoError(t, tr.Fail(ctx, "k", "boom"))
			rec, ok, err = tr.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, StatusError, rec.Status)
			assert.Equal(t, "boom", rec.Message)

			require.NoError(t, tr.Clear(ctx, "k"))
			_, ok, err = tr.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestTrackerExpiresAfterTTL(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: time.Unix(1700000000, 0)}
			tr := New(s, c.now)

			require.NoError(t, tr.Start(ctx, "k", 1))
			require.NoError(t, tr.Update(ctx, "k", func(r *Record) { r.Status = StatusCompleted }))

			c.advance(TTL - time.Second)
			_, ok, err := tr.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)

			// zapis przedłuża TTL
			require.NoError(t, tr.Update(ctx, "k", func(r *Record) { r.Message = "x" }))
			c.advance(TTL - time.Second)
			_, ok, err = tr.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)

			c.advance(time.Second)
			_, ok, err = tr.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestUpdateDoesNotResurrectExpired(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: time.Unix(1700000000, 0)}
			tr := New(s, c.now)

			require.NoError(t, tr.Start(ctx, "k", 5))
			c.advance(TTL)

			called := false
			err := tr.Update(ctx, "k", func(r *Record) { called = true })
			assert.ErrorIs(t, err, ErrNotFound)
			assert.False(t, called)
			assert.ErrorIs(t, tr.Fail(ctx, "k", "boom"), ErrNotFound)

			_, ok, err := tr.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestUpdateUnknownKey(t *testing.T) {
	tr := New(NewMemoryStore(), nil)
	err := tr.Update(context.Background(), "nope", func(*Record) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

type purgeFailStore struct{ *MemoryStore }

func (purgeFailStore) Purge(context.Context, time.Time) error { return errors.New("db locked") }

func TestStartLogsPurgeFailure(t *testing.T) {
	var buf bytes.Buffer
	tr := New(purgeFailStore{NewMemoryStore()}, nil)
	tr.SetLogger(zerolog.New(&buf))

	require.NoError(t, tr.Start(context.Background(), "k", 1))
	assert.Contains(t, buf.String(), "progress purge failed")
	assert.Contains(t, buf.String(), "db locked")

	_, ok, err := tr.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnknownKey(t *testing.T) {
	tr := New(NewMemoryStore(), nil)
	_, ok, err := tr.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRingKeepsLastTen(t *testing.T) {
	var r Record
	for i := 0; i < 15; i++ {
		r.Push(RecentItem{Index: i})
	}
	require.Len(t, r.RecentProducts, RingSize)
	assert.Equal(t, 5, r.RecentProducts[0].Index)
	assert.Equal(t, 14, r.RecentProducts[9].Index)

	assert.True(t, r.Amend(14, func(it *RecentItem) { it.Status = StatusSuccess }))
	assert.Equal(t, StatusSuccess, r.RecentProducts[9].Status)
	assert.False(t, r.Amend(2, func(*RecentItem) {}))
}

func TestNewKey(t *testing.T) {
	k := NewKey(time.Unix(1700000000, 0))
	assert.Regexp(t, regexp.MustCompile(`^sync_1700000000_[0-9a-f]{8}$`), k)
	assert.NotEqual(t, k, NewKey(time.Unix(1700000000, 0)))
}
