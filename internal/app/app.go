// Package app składa wszystkie komponenty (baza, sync, API) dla CLI i traya.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/bartek5186/dopi2woo/internal/categories"
	conf "github.com/bartek5186/dopi2woo/internal/config"
	"github.com/bartek5186/dopi2woo/internal/db"
	"github.com/bartek5186/dopi2woo/internal/dopigo"
	"github.com/bartek5186/dopi2woo/internal/images"
	"github.com/bartek5186/dopi2woo/internal/importer"
	"github.com/bartek5186/dopi2woo/internal/integrations"
	"github.com/bartek5186/dopi2woo/internal/kv"
	"github.com/bartek5186/dopi2woo/internal/logs"
	"github.com/bartek5186/dopi2woo/internal/mapper"
	"github.com/bartek5186/dopi2woo/internal/progress"
	"github.com/bartek5186/dopi2woo/internal/store"
	"github.com/bartek5186/dopi2woo/internal/syncer"
	"github.com/bartek5186/dopi2woo/internal/web"
)

const Name = "dopi2woo"

type App struct {
	Log     zerolog.Logger
	Dir     string
	CfgPath string
	Cfg     *conf.Config

	DB         *db.Handle
	Store      *store.Store
	Options    kv.Store
	Categories *categories.Reconciler
	Mapper     *mapper.Mapper
	Progress   *progress.Tracker
	Importer   *importer.Importer
	Client     *dopigo.Client
	Runner     *syncer.Runner
	Syncer     *syncer.Syncer
	Web        *web.Server

	progressStore progress.Store
}

// Bootstrap: .env → config → baza → komponenty.
func Bootstrap(log zerolog.Logger, appDir string) (*App, error) {
	if err := conf.LoadEnv(appDir); err != nil {
		return nil, err
	}
	cfgPath := filepath.Join(appDir, "config.json")
	cfg, firstRun, err := conf.LoadOrCreate(cfgPath)
	if err != nil {
		return nil, err
	}
	if firstRun {
		log.Info().Msgf("Utworzono domyślną konfigurację: %s", cfgPath)
	}
	a, err := New(log, appDir, cfg)
	if err != nil {
		return nil, err
	}
	a.CfgPath = cfgPath
	return a, nil
}

// New składa aplikację z gotowego configu.
func New(log zerolog.Logger, appDir string, cfg *conf.Config) (*App, error) {
	dbh, err := db.Open(cfg.DB, appDir)
	if err != nil {
		return nil, fmt.Errorf("DB open error: %w", err)
	}
	if err := dbh.Migrate(); err != nil {
		_ = dbh.Close()
		return nil, fmt.Errorf("DB migrate error: %w", err)
	}
	log.Info().Str("driver", dbh.Driver).Str("db", dbh.Path).Msg("DB ready")

	a := &App{Log: log, Dir: appDir, Cfg: cfg, DB: dbh}
	a.Store = store.New(dbh.DB)
	a.Options = kv.NewGorm(dbh.DB)
	a.Categories = categories.New(logs.Component(log, "categories"), a.Store, a.Options)

	mediaDir := cfg.MediaDir(appDir)
	dl := images.NewHTTPDownloader(logs.Component(log, "images"), a.Store, mediaDir, cfg.Media.BaseURL)
	resolver := images.NewResolver(logs.Component(log, "images"), a.Store, dl)
	a.Mapper = mapper.New(logs.Component(log, "mapper"), a.Store, a.Categories, resolver)

	switch cfg.ProgressStore {
	case conf.ProgressStoreMemory:
		a.progressStore = progress.NewMemoryStore()
	case conf.ProgressStoreDB, "":
		a.progressStore = progress.NewGormStore(dbh.DB)
	default:
		_ = dbh.Close()
		return nil, fmt.Errorf("nieznany progress_store %q", cfg.ProgressStore)
	}
	a.Progress = progress.New(a.progressStore, nil)
	a.Progress.SetLogger(logs.Component(log, "progress"))

	a.Importer = importer.New(log, a.Store, a.Store, a.Mapper, a.Progress)
	a.Client = dopigo.NewClient(logs.Component(log, "dopigo"), cfg.Dopigo.Config)
	a.Runner = syncer.NewRunner(log, cfg.Dopigo, a.Client, a.Importer, a.Progress, syncer.NewHistory(a.Options))
	a.Syncer = syncer.New(log, cfg, integrations.Deps{
		DB:         dbh.DB,
		Sync:       a.Runner,
		Categories: a.Categories,
	}, a.progressStore)

	a.Web = web.New(log, web.Deps{
		Sync:       a.Runner,
		Progress:   a.Progress,
		Stock:      a.Mapper,
		Categories: a.Categories,
		Catalog:    a.Client,
		Issues:     a.Store,
		FeedURL:    a.feedURL,
	})
	return a, nil
}

func (a *App) feedURL() string {
	return a.Cfg.Dopigo.XMLFeedURL
}

// Reload wczytuje config od nowa i przekazuje go syncerowi.
func (a *App) Reload() error {
	if a.CfgPath == "" {
		return errors.New("brak ścieżki configu")
	}
	if err := conf.LoadEnv(a.Dir); err != nil {
		return err
	}
	cfg, _, err := conf.LoadOrCreate(a.CfgPath)
	if err != nil {
		return err
	}
	a.Cfg = cfg
	a.Syncer.UpdateConfig(cfg)
	return nil
}

// ImportFeedFromURL pobiera feed XML z configu i importuje kategorie.
func (a *App) ImportFeedFromURL(ctx context.Context) (*categories.FeedReport, error) {
	raw, err := a.Client.FetchCategoryFeed(ctx, a.Cfg.Dopigo.XMLFeedURL)
	if err != nil {
		return nil, err
	}
	return a.Categories.ImportFeed(ctx, raw)
}

// Close zatrzymuje syncer, czeka na synchronizacje w tle i zamyka bazę.
func (a *App) Close() error {
	var err error
	if a.Syncer != nil {
		a.Syncer.Stop()
	}
	if a.Runner != nil {
		a.Runner.Wait()
	}
	if a.DB != nil {
		err = multierr.Append(err, a.DB.Close())
	}
	return err
}
