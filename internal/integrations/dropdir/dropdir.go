// Package dropdir – katalog "drop": eksporty produktów (.json) i feedy kategorii (.xml) wrzucane ręcznie.
package dropdir

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/bartek5186/dopi2woo/internal/db"
	"github.com/bartek5186/dopi2woo/internal/dopigo"
	"github.com/bartek5186/dopi2woo/internal/integrations"
)

const (
	KindProducts   = "products"
	KindCategories = "categories"
)

type Config struct {
	Dir     string `json:"dir"`      // np. ~/dopi2woo/in
	PollSec int    `json:"poll_sec"` // np. 5-10s
}

type DropDir struct {
	log    zerolog.Logger
	cfg    Config
	db     *gorm.DB
	runner integrations.SyncRunner
	cats   integrations.FeedImporter

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func (d *DropDir) Name() string { return "dropdir" }

func (d *DropDir) Start(ctx context.Context) error {
	d.mu.Lock()
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()
	dir := expandHome(d.cfg.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("dropdir: katalog %s: %w", dir, err)
	}
	d.log.Info().Str("integration", d.Name()).Str("dir", dir).Msg("start")

	ticker := time.NewTicker(d.interval())
	defer ticker.Stop()

	// pierwszy przebieg
	d.ScanOnce(d.ctx, dir)

	for {
		select {
		case <-d.ctx.Done():
			d.log.Info().Str("integration", d.Name()).Msg("stop")
			return nil
		case <-ticker.C:
			d.ScanOnce(d.ctx, dir)
		}
	}
}

func (d *DropDir) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *DropDir) interval() time.Duration {
	if d.cfg.PollSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(d.cfg.PollSec) * time.Second
}

// ScanOnce przetwarza nowe (albo wcześniej nieudane) pliki z katalogu.
func (d *DropDir) ScanOnce(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		d.log.Error().Err(err).Str("dir", dir).Msg("nie mogę odczytać katalogu")
		return
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if e.IsDir() {
			continue
		}
		name := e.Name()
		kind := kindOf(name)
		if kind == "" {
			continue
		}
		full := filepath.Join(dir, name)

		rec, already, err := d.registerFile(full, name, kind)
		if err != nil {
			d.log.Error().Err(err).Str("file", name).Msg("rejestracja pliku nieudana")
			continue
		}
		if already {
			if rec.Status == db.FileDone {
				d.log.Debug().Str("file", name).Msg("plik już był i DONE — pomijam")
				continue
			}
			d.log.Warn().Str("file", name).Uint("import_id", rec.ImportID).
				Int("status", rec.Status).Msg("plik istnieje, ale nie DONE — ponawiam przetwarzanie")
		}

		if err := d.processFile(ctx, full, kind); err != nil {
			d.log.Error().Err(err).Str("file", name).Uint("import_id", rec.ImportID).Msg("błąd przetwarzania pliku")
			_ = d.db.Model(&db.ImportFile{}).Where("import_id = ?", rec.ImportID).
				Updates(map[string]any{"status": db.FileError, "last_error": err.Error()})
			continue
		}

		now := time.Now()
		_ = d.db.Model(&db.ImportFile{}).Where("import_id = ?", rec.ImportID).
			Updates(map[string]any{"status": db.FileDone, "last_error": "", "processed_at": now})
		d.log.Info().Str("file", name).Str("kind", kind).Uint("import_id", rec.ImportID).Msg("przetworzono OK")
	}
}

func (d *DropDir) processFile(ctx context.Context, fullPath, kind string) error {
	raw, err := os.ReadFile(fullPath)
	if err != nil {
		return err
	}
	switch kind {
	case KindProducts:
		records, err := dopigo.DecodeRecords(raw)
		if err != nil {
			return err
		}
		res := d.runner.ImportRecords(ctx, records, filepath.Base(fullPath))
		if res.Total > 0 && res.Success == 0 {
			return fmt.Errorf("żaden produkt nie zaimportowany: %w", res.Err)
		}
		if res.Errors > 0 {
			d.log.Warn().Int("errors", res.Errors).Err(res.Err).Msg("część produktów z błędem")
		}
		return nil
	case KindCategories:
		rep, err := d.cats.ImportFeed(ctx, raw)
		if err != nil {
			return err
		}
		d.log.Info().Int("created", rep.Created).Int("updated", rep.Updated).Int("skipped", len(rep.Skipped)).Msg("feed kategorii OK")
		return nil
	}
	return fmt.Errorf("nieznany rodzaj pliku %q", kind)
}

// registerFile – idempotencja po SHA-256 treści.
func (d *DropDir) registerFile(fullPath, name, kind string) (*db.ImportFile, bool, error) {
	fi, err := os.Stat(fullPath)
	if err != nil {
		return nil, false, err
	}
	h, err := fileSHA256(fullPath)
	if err != nil {
		return nil, false, err
	}

	var existing db.ImportFile
	err = d.db.Where("sha256 = ?", h).Take(&existing).Error
	if err == nil {
		return &existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	rec := db.ImportFile{
		Filename:  name,
		Kind:      kind,
		SHA256:    h,
		SizeBytes: fi.Size(),
		Status:    db.FilePending,
	}
	if err := d.db.Create(&rec).Error; err != nil {
		return nil, false, err
	}
	return &rec, false, nil
}

func kindOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return KindProducts
	case ".xml":
		return KindCategories
	}
	return ""
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func factory(log zerolog.Logger, raw json.RawMessage, deps integrations.Deps) (integrations.Integration, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return nil, errors.New("dropdir: brak \"dir\" w configu")
	}
	if deps.DB == nil || deps.Sync == nil || deps.Categories == nil {
		return nil, errors.New("dropdir: niekompletne zależności")
	}
	return &DropDir{log: log, cfg: cfg, db: deps.DB, runner: deps.Sync, cats: deps.Categories}, nil
}

func init() {
	integrations.Register("dropdir", factory)
}
