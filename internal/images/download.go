package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bartek5186/dopi2woo/internal/db"
	"github.com/bartek5186/dopi2woo/internal/textutil"
)

var (
	ErrInvalidURL = errors.New("images: invalid image URL")
	ErrTooLarge   = errors.New("images: image exceeds size limit")
)

const (
	downloadTimeout = 30 * time.Second
	maxImageBytes   = 32 << 20
	createAttempts  = 5
)

type MediaWriter interface {
	CreateMedia(ctx context.Context, m *db.Media) error
}

// HTTPDownloader pobiera obrazek do katalogu mediów i tworzy rekord w bibliotece.
type HTTPDownloader struct {
	log     zerolog.Logger
	http    *http.Client
	media   MediaWriter
	dir     string
	baseURL  string // publiczny prefiks dla guid; pusty = file://
	now      func() time.Time
	maxBytes int64
}

func NewHTTPDownloader(log zerolog.Logger, media MediaWriter, dir, baseURL string) *HTTPDownloader {
	return &HTTPDownloader{
		log:     log.With().Str("component", "downloader").Logger(),
		http:    &http.Client{Timeout: downloadTimeout},
		media:   media,
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:      time.Now,
		maxBytes: maxImageBytes,
	}
}

// FileName: dopigo-<sku>-<unix>-<basename>.
func FileName(rawURL, sku string, now time.Time) string {
	s := "no-sku"
	if sku != "" {
		s = textutil.SanitizeFileName(sku)
	}
	base := "image"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && b != "" {
			base = textutil.SanitizeFileName(b)
		}
	}
	return fmt.Sprintf("dopigo-%s-%d-%s", s, now.Unix(), base)
}

func (d *HTTPDownloader) Download(ctx context.Context, rawURL string, vc VariantContext) (uint, error) {
	if !ValidURL(rawURL) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: http %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > d.maxBytes {
		return 0, fmt.Errorf("download %s: %w (%d bytes)", rawURL, ErrTooLarge, resp.ContentLength)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return 0, err
	}
	f, name, err := createUnique(d.dir, FileName(rawURL, vc.SKU, d.now()))
	if err != nil {
		return 0, err
	}
	full := f.Name()
	// +1 bajt, żeby odróżnić plik równy limitowi od uciętego
	n, err := io.Copy(f, io.LimitReader(resp.Body, d.maxBytes+1))
	if err == nil && n > d.maxBytes {
		err = fmt.Errorf("%w (over %d bytes)", ErrTooLarge, d.maxBytes)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return 0, fmt.Errorf("write %s: %w", name, err)
	}

	m := &db.Media{
		GUID:      d.guid(name, full),
		SourceURL: rawURL,
		Filename:  name,
		Path:      full,
		MimeType:  resp.Header.Get("Content-Type"),
		SizeBytes: n,
	}
	if err := d.media.CreateMedia(ctx, m); err != nil {
		_ = os.Remove(full)
		return 0, err
	}
	d.log.Debug().Str("url", rawURL).Str("file", name).Int64("bytes", n).Uint("media_id", m.ID).Msg("image stored")
	return m.ID, nil
}

// createUnique nie nadpisuje istniejących plików: przy kolizji dokleja losowy sufiks przed rozszerzeniem.
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 0; i < createAttempts; i++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
		candidate = stem + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8] + ext
	}
	return nil, "", fmt.Errorf("create %s: no free file name after %d attempts", name, createAttempts)
}

func (d *HTTPDownloader) guid(name, full string) string {
	if d.baseURL != "" {
		return d.baseURL + "/" + name
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String()
}
