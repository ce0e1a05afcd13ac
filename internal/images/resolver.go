// Package images decyduje, czy obrazek Dopigo użyć z biblioteki mediów, czy pobrać na nowo.
package images

import (
	"context"
	"net/url"
	"sort"

	"github.com/rs/zerolog"

	"github.com/bartek5186/dopi2woo/internal/dopigo"
	"github.com/bartek5186/dopi2woo/internal/metrics"
)

// Media – wyszukiwanie zasobu po dokładnym URL (guid albo source_url).
type Media interface {
	FindMediaByURL(ctx context.Context, url string) (uint, bool, error)
}

type Downloader interface {
	Download(ctx context.Context, rawURL string, vc VariantContext) (uint, error)
}

// VariantContext – dane wariantu potrzebne do nazwania pliku.
type VariantContext struct {
	SKU string
}

type Resolver struct {
	log   zerolog.Logger
	media Media
	dl    Downloader
}

func NewResolver(log zerolog.Logger, media Media, dl Downloader) *Resolver {
	return &Resolver{
		log:   log.With().Str("component", "images").Logger(),
		media: media,
		dl:    dl,
	}
}

// ValidURL – absolutny URL ze schematem i hostem.
func ValidURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// EffectiveURL: absolute_url, a gdy ten nie jest poprawnym URL-em – source_url.
func EffectiveURL(img dopigo.Image) string {
	if ValidURL(img.AbsoluteURL) {
		return img.AbsoluteURL
	}
	return img.SourceURL
}

// Sorted zwraca kopię posortowaną rosnąco po order (stabilnie).
func Sorted(imgs []dopigo.Image) []dopigo.Image {
	out := append([]dopigo.Image(nil), imgs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// URLs – efektywne URL-e w kolejności order (to zapisujemy w image_urls).
func URLs(imgs []dopigo.Image) []string {
	sorted := Sorted(imgs)
	out := make([]string, 0, len(sorted))
	for _, img := range sorted {
		out = append(out, EffectiveURL(img))
	}
	return out
}

// Resolve zwraca id mediów w kolejności obrazków. Nieudane pobranie pomija obrazek.
func (r *Resolver) Resolve(ctx context.Context, imgs []dopigo.Image, stored []string, vc VariantContext) []uint {
	var ids []uint
	for _, img := range Sorted(imgs) {
		u := EffectiveURL(img)

		// 1. zasób już jest – nigdy nie pobieramy ponownie
		if id, ok := r.lookup(ctx, u); ok {
			metrics.RecordImage(metrics.ImageReused)
			ids = append(ids, id)
			continue
		}

		switch {
		case len(stored) > 0 && !contains(stored, u):
			// 2. URL zmienił się od ostatniej synchronizacji
			r.log.Debug().Str("url", u).Msg("image url changed, downloading")
		case len(stored) == 0:
			// 3. pierwsza synchronizacja albo utracona historia
		default:
			// 4. URL bez zmian, zasobu brak – spróbuj dowolnego zapamiętanego
			if id, ok := r.firstStored(ctx, stored); ok {
				metrics.RecordImage(metrics.ImageReused)
				ids = append(ids, id)
				continue
			}
		}

		if id, ok := r.download(ctx, u, vc); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Resolver) lookup(ctx context.Context, u string) (uint, bool) {
	id, ok, err := r.media.FindMediaByURL(ctx, u)
	if err != nil {
		r.log.Warn().Err(err).Str("url", u).Msg("media lookup failed")
		return 0, false
	}
	return id, ok
}

func (r *Resolver) firstStored(ctx context.Context, stored []string) (uint, bool) {
	for _, s := range stored {
		if id, ok := r.lookup(ctx, s); ok {
			return id, true
		}
	}
	return 0, false
}

func (r *Resolver) download(ctx context.Context, u string, vc VariantContext) (uint, bool) {
	id, err := r.dl.Download(ctx, u, vc)
	if err != nil {
		metrics.RecordImage(metrics.ImageFailed)
		r.log.Warn().Err(err).Str("url", u).Str("sku", vc.SKU).Msg("image download failed, skipping")
		return 0, false
	}
	metrics.RecordImage(metrics.ImageDownloaded)
	return id, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
