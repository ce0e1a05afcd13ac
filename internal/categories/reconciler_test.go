package categories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartek5186/dopi2woo/internal/kv"
	"github.com/bartek5186/dopi2woo/internal/store"
	"github.com/bartek5186/dopi2woo/internal/testutil"
)

func newReconciler(t *testing.T) (*Reconciler, *store.Store, kv.Store) {
	t.Helper()
	s := store.New(testutil.NewDB(t))
	opts := kv.NewMemory()
	return New(testutil.Logger(), s, opts), s, opts
}

func TestEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r, s, _ := newReconciler(t)

	first, ok, err := r.Ensure(ctx, 7, "A > B > C")
	require.NoError(t, err)
	require.True(t, ok)

	n, err := s.CountTerms(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	second, ok, err := r.Ensure(ctx, 7, "A > B > C")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, second)

	n, err = s.CountTerms(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestEnsureSharesParents(t *testing.T) {
	ctx := context.Background()
	r, s, _ := newReconciler(t)

	_, ok, err := r.Ensure(ctx, 1, "Giyim > T-Shirt")
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = r.Ensure(ctx, 2, " Giyim >  > Pantolon ")
	require.NoError(t, err)
	require.True(t, ok)

	n, err := s.CountTerms(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestEnsureRejectsEmptyInput(t *testing.T) {
	ctx := context.Background()
	r, s, opts := newReconciler(t)

	for _, tc := range []struct {
		id   int64
		path string
	}{{0, "A"}, {-1, "A"}, {5, ""}, {5, " > > "}} {
		_, ok, err := r.Ensure(ctx, tc.id, tc.path)
		require.NoError(t, err)
		assert.False(t, ok, "%d %q", tc.id, tc.path)
	}
	n, err := s.CountTerms(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	found, err := opts.Get(ctx, MapOption, &map[int64]uint{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLookupFallsBackToTermMeta(t *testing.T) {
	ctx := context.Background()
	r, _, opts := newReconciler(t)

	termID, ok, err := r.Ensure(ctx, 9, "X > Y")
	require.NoError(t, err)
	require.True(t, ok)

	// utracona opcja mapy
	require.NoError(t, opts.Delete(ctx, MapOption))

	got, ok, err := r.Lookup(ctx, 9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, termID, got)

	m, err := r.Mapping(ctx)
	require.NoError(t, err)
	assert.Equal(t, termID, m[9])
}

func TestLookupIgnoresDeletedTerm(t *testing.T) {
	ctx := context.Background()
	r, s, _ := newReconciler(t)

	termID, _, err := r.Ensure(ctx, 3, "Solo")
	require.NoError(t, err)
	require.NoError(t, s.DeleteTerm(ctx, termID))

	_, ok, err := r.Lookup(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.Ensure(ctx, 3, "Solo")
	require.NoError(t, err)
	require.True(t, ok)
	n, err := s.CountTerms(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPendingSet(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newReconciler(t)

	require.NoError(t, r.MarkPending(ctx, 4))
	require.NoError(t, r.MarkPending(ctx, 4))
	require.NoError(t, r.MarkPending(ctx, 5))
	p, err := r.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, p)

	_, ok, err := r.Ensure(ctx, 4, "Resolved")
	require.NoError(t, err)
	require.True(t, ok)

	p, err = r.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, p)
}

type failingTerms struct{ *store.Store }

func (failingTerms) CreateTerm(context.Context, string, uint) (uint, error) {
	return 0, errors.New("constraint")
}

func TestEnsureCreateFailureLeavesNoMapping(t *testing.T) {
	ctx := context.Background()
	s := store.New(testutil.NewDB(t))
	opts := kv.NewMemory()
	r := New(testutil.Logger(), failingTerms{s}, opts)

	_, ok, err := r.Ensure(ctx, 11, "A > B")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnresolved)

	m, err := r.Mapping(ctx)
	require.NoError(t, err)
	assert.Empty(t, m)
}

const feed = `<root>
<list-item><category><id>1</id><name>T-Shirt</name><root><name>Giyim</name></root></category></list-item>
<list-item><category><id>2</id><name>Ayakkabı</name></category><full_category_path>Giyim &gt; Ayakkabı</full_category_path></list-item>
<list-item><category><id>3</id></category></list-item>
<list-item><category><name>bez id</name></category></list-item>
</root>`

func TestImportFeed(t *testing.T) {
	ctx := context.Background()
	r, s, _ := newReconciler(t)

	rep, err := r.ImportFeed(ctx, []byte(feed))
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Created)
	assert.Equal(t, 0, rep.Updated)
	assert.Equal(t, []int64{3}, rep.Skipped)
	assert.Equal(t, []int64{3}, rep.Pending)

	n, err := s.CountTerms(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	rep, err = r.ImportFeed(ctx, []byte(feed))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Created)
	assert.Equal(t, 2, rep.Updated)

	n, err = s.CountTerms(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
