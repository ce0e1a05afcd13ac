package images

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartek5186/dopi2woo/internal/dopigo"
	"github.com/bartek5186/dopi2woo/internal/testutil"
)

type fakeMedia map[string]uint

func (m fakeMedia) FindMediaByURL(_ context.Context, u string) (uint, bool, error) {
	id, ok := m[u]
	return id, ok, nil
}

type fakeDownloader struct {
	media fakeMedia
	next  uint
	calls []string
	fail  map[string]bool
}

func (d *fakeDownloader) Download(_ context.Context, u string, _ VariantContext) (uint, error) {
	d.calls = append(d.calls, u)
	if d.fail[u] {
		return 0, errors.New("boom")
	}
	d.next++
	id := 100 + d.next
	d.media[u] = id
	return id, nil
}

func newFixture() (*Resolver, fakeMedia, *fakeDownloader) {
	m := fakeMedia{}
	d := &fakeDownloader{media: m}
	return NewResolver(testutil.Logger(), m, d), m, d
}

func img(u string, order int) dopigo.Image {
	return dopigo.Image{AbsoluteURL: u, Order: dopigo.FlexInt(order)}
}

func TestResolveOrdersAndDownloadsFirstSync(t *testing.T) {
	r, _, d := newFixture()
	ids := r.Resolve(context.Background(), []dopigo.Image{
		img("https://cdn/b.jpg", 2),
		img("https://cdn/a.jpg", 1),
	}, nil, VariantContext{SKU: "A"})

	assert.Equal(t, []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}, d.calls)
	assert.Equal(t, []uint{101, 102}, ids)
}

func TestResolveUnchangedURLNeverDownloads(t *testing.T) {
	r, _, d := newFixture()
	imgs := []dopigo.Image{img("https://cdn/a.jpg", 0)}

	first := r.Resolve(context.Background(), imgs, nil, VariantContext{})
	require.Len(t, d.calls, 1)

	second := r.Resolve(context.Background(), imgs, URLs(imgs), VariantContext{})
	assert.Len(t, d.calls, 1)
	assert.Equal(t, first, second)
}

func TestResolveChangedURLDownloads(t *testing.T) {
	r, m, d := newFixture()
	m["https://cdn/a.jpg"] = 5

	ids := r.Resolve(context.Background(),
		[]dopigo.Image{img("https://cdn/a.jpg?v=2", 0)},
		[]string{"https://cdn/a.jpg"}, VariantContext{})

	assert.Equal(t, []string{"https://cdn/a.jpg?v=2"}, d.calls)
	assert.Equal(t, []uint{101}, ids)
}

func TestResolveFallsBackToAnyStoredAsset(t *testing.T) {
	r, m, d := newFixture()
	m["https://cdn/old.jpg"] = 9

	ids := r.Resolve(context.Background(),
		[]dopigo.Image{img("https://cdn/a.jpg", 0)},
		[]string{"https://cdn/a.jpg", "https://cdn/old.jpg"}, VariantContext{})

	assert.Empty(t, d.calls)
	assert.Equal(t, []uint{9}, ids)
}

func TestResolveRedownloadsWhenAssetsGone(t *testing.T) {
	r, _, d := newFixture()
	ids := r.Resolve(context.Background(),
		[]dopigo.Image{img("https://cdn/a.jpg", 0)},
		[]string{"https://cdn/a.jpg"}, VariantContext{})

	assert.Equal(t, []string{"https://cdn/a.jpg"}, d.calls)
	assert.Len(t, ids, 1)
}

func TestResolveOmitsFailedDownloads(t *testing.T) {
	r, _, d := newFixture()
	d.fail = map[string]bool{"https://cdn/bad.jpg": true}

	ids := r.Resolve(context.Background(), []dopigo.Image{
		img("https://cdn/bad.jpg", 0),
		img("https://cdn/ok.jpg", 1),
	}, nil, VariantContext{})
	assert.Equal(t, []uint{101}, ids)
}

func TestEffectiveURL(t *testing.T) {
	assert.Equal(t, "https://a/x.jpg", EffectiveURL(dopigo.Image{AbsoluteURL: "https://a/x.jpg", SourceURL: "https://b/y.jpg"}))
	assert.Equal(t, "https://b/y.jpg", EffectiveURL(dopigo.Image{AbsoluteURL: "not a url", SourceURL: "https://b/y.jpg"}))
	assert.Equal(t, "https://b/y.jpg", EffectiveURL(dopigo.Image{SourceURL: "https://b/y.jpg"}))
}

func TestSortedIsStable(t *testing.T) {
	out := Sorted([]dopigo.Image{img("c", 1), img("a", 0), img("b", 1)})
	assert.Equal(t, "a", out[0].AbsoluteURL)
	assert.Equal(t, "c", out[1].AbsoluteURL)
	assert.Equal(t, "b", out[2].AbsoluteURL)
}
