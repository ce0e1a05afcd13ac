package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	conf "github.com/bartek5186/dopi2woo/internal/config"
	"github.com/bartek5186/dopi2woo/internal/dopigo"
	"github.com/bartek5186/dopi2woo/internal/importer"
	"github.com/bartek5186/dopi2woo/internal/metrics"
	"github.com/bartek5186/dopi2woo/internal/progress"
)

var (
	ErrNoCredentials = errors.New("syncer: API key not configured")
	ErrNoProducts    = errors.New("syncer: no products returned from Dopigo API")
)

type Catalog interface {
	FetchToken(ctx context.Context, username, password string) (string, error)
	FetchAll(ctx context.Context, token string, pageSize int) (*dopigo.Result, error)
}

type Importer interface {
	Import(ctx context.Context, records []json.RawMessage, skipImages bool, progressKey string) *importer.Result
}

type Tracker interface {
	Start(ctx context.Context, key string, total int) error
	Update(ctx context.Context, key string, fn func(*progress.Record)) error
	Fail(ctx context.Context, key, message string) error
}

// Runner wykonuje pełną synchronizację: token → wszystkie strony → batch import.
type Runner struct {
	log      zerolog.Logger
	catalog  Catalog
	importer Importer
	tracker  Tracker
	history  *History
	now      func() time.Time

	mu  sync.RWMutex
	cfg conf.DopigoConfig

	wg sync.WaitGroup
}

func NewRunner(log zerolog.Logger, cfg conf.DopigoConfig, catalog Catalog, imp Importer, tracker Tracker, history *History) *Runner {
	return &Runner{
		log:      log.With().Str("component", "sync").Logger(),
		catalog:  catalog,
		importer: imp,
		tracker:  tracker,
		history:  history,
		now:      time.Now,
		cfg:      cfg,
	}
}

func (r *Runner) UpdateConfig(cfg conf.DopigoConfig) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

func (r *Runner) config() conf.DopigoConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Token: klucz z configu, a gdy go brak – wymiana loginu i hasła.
func (r *Runner) Token(ctx context.Context) (string, error) {
	cfg := r.config()
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if cfg.Username == "" || cfg.Password == "" {
		return "", ErrNoCredentials
	}
	token, err := r.catalog.FetchToken(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoCredentials
	}
	return token, nil
}

// RunSync – blokujące; pusty progressKey = bez śledzenia postępu.
func (r *Runner) RunSync(ctx context.Context, kind, progressKey string) (*importer.Result, error) {
	if kind == "" {
		kind = KindManual
	}
	cfg := r.config()
	start := r.now()
	r.log.Info().Str("type", kind).Str("progress_key", progressKey).Msg("sync start")

	token, err := r.Token(ctx)
	if err != nil {
		return nil, r.fail(ctx, kind, progressKey, start, "Failed to obtain Dopigo API token", err)
	}

	fetched, err := r.catalog.FetchAll(ctx, token, cfg.PageSize)
	if err != nil {
		return nil, r.fail(ctx, kind, progressKey, start, "Failed to fetch products from Dopigo API", err)
	}
	if len(fetched.Results) == 0 {
		return nil, r.fail(ctx, kind, progressKey, start, "No products returned from Dopigo API", ErrNoProducts)
	}
	r.log.Info().Int("count", fetched.Count).Int("total_count", fetched.TotalCount).Msg("products fetched")

	res := r.importer.Import(ctx, fetched.Results, cfg.SkipImages, progressKey)
	elapsed := r.now().Sub(start)
	format := "Synced %d/%d products in %.2f seconds"
	if kind == KindAuto {
		format = "Auto-synced %d/%d products in %.2f seconds"
	}
	msg := fmt.Sprintf(format, res.Success, res.Total, elapsed.Seconds())
	r.finish(ctx, progressKey, res, elapsed)
	r.appendHistory(ctx, HistoryEntry{
		Timestamp:     r.now().Unix(),
		Type:          kind,
		Status:        StatusSuccess,
		ProductsCount: res.Success,
		Message:       msg,
	})
	metrics.RecordSync(kind, StatusSuccess, elapsed)
	r.log.Info().Str("type", kind).Int("success", res.Success).Int("errors", res.Errors).Dur("took", elapsed).Msg(msg)
	return res, nil
}

// Trigger zwraca świeży klucz od razu, a synchronizacja leci w tle.
func (r *Runner) Trigger(ctx context.Context) string {
	key := progress.NewKey(r.now())
	if err := r.tracker.Start(ctx, key, 0); err != nil {
		r.log.Warn().Err(err).Str("progress_key", key).Msg("progress start failed")
	}
	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := r.RunSync(bg, KindManual, key); err != nil {
			r.log.Error().Err(err).Str("progress_key", key).Msg("triggered sync failed")
		}
	}()
	return key
}

// Wait czeka na synchronizacje odpalone przez Trigger.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// ImportRecords importuje gotowe rekordy (plik, body żądania) i dopisuje historię.
func (r *Runner) ImportRecords(ctx context.Context, records []json.RawMessage, source string) *importer.Result {
	cfg := r.config()
	start := r.now()
	res := r.importer.Import(ctx, records, cfg.SkipImages, "")
	elapsed := r.now().Sub(start)

	msg := fmt.Sprintf("Imported %d/%d products in %.2f seconds", res.Success, res.Total, elapsed.Seconds())
	if source != "" {
		msg += " (" + source + ")"
	}
	status := StatusSuccess
	if res.Total > 0 && res.Success == 0 {
		status = StatusError
	}
	r.appendHistory(ctx, HistoryEntry{
		Timestamp:     r.now().Unix(),
		Type:          KindImport,
		Status:        status,
		ProductsCount: res.Success,
		Message:       msg,
	})
	metrics.RecordSync(KindImport, status, elapsed)
	return res
}

func (r *Runner) History(ctx context.Context) ([]HistoryEntry, error) {
	return r.history.List(ctx)
}

func (r *Runner) fail(ctx context.Context, kind, key string, start time.Time, msg string, cause error) error {
	err := fmt.Errorf("%s: %w", msg, cause)
	if key != "" {
		if perr := r.tracker.Fail(ctx, key, err.Error()); perr != nil {
			r.log.Warn().Err(perr).Str("progress_key", key).Msg("progress update failed")
		}
	}
	r.appendHistory(ctx, HistoryEntry{
		Timestamp: r.now().Unix(),
		Type:      kind,
		Status:    StatusError,
		Message:   err.Error(),
	})
	metrics.RecordSync(kind, StatusError, r.now().Sub(start))
	r.log.Error().Err(cause).Str("type", kind).Msg(msg)
	return err
}

func (r *Runner) finish(ctx context.Context, key string, res *importer.Result, elapsed time.Duration) {
	if key == "" {
		return
	}
	err := r.tracker.Update(ctx, key, func(p *progress.Record) {
		p.Status = progress.StatusCompleted
		p.Message = fmt.Sprintf("Successfully synced %d products", res.Success)
		p.EndTime = r.now().Unix()
		p.Duration = elapsed.Seconds()
		p.ProductIDs = res.IDs
	})
	if err != nil {
		r.log.Warn().Err(err).Str("progress_key", key).Msg("progress update failed")
	}
}

func (r *Runner) appendHistory(ctx context.Context, e HistoryEntry) {
	if r.history == nil {
		return
	}
	if err := r.history.Append(ctx, e); err != nil {
		r.log.Warn().Err(err).Msg("history append failed")
	}
}
