// Package importer przepuszcza listę produktów Dopigo przez mapper: update, przywrócenie z kosza albo utworzenie.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/bartek5186/dopi2woo/internal/db"
	"github.com/bartek5186/dopi2woo/internal/dopigo"
	"github.com/bartek5186/dopi2woo/internal/metrics"
	"github.com/bartek5186/dopi2woo/internal/progress"
	"github.com/bartek5186/dopi2woo/internal/store"
)

// ErrValidation – rekord bez meta_id albo bez wariantów.
var ErrValidation = errors.New("importer: invalid product record")

const (
	reasonValidation = "validation"
	reasonMapping    = "mapping"

	// limity logów debug na batch
	detailedItems = 5
	progressEvery = 10
)

type Products interface {
	FindProduct(ctx context.Context, metaID string) (*db.Product, store.Lifecycle, error)
	RestoreProduct(ctx context.Context, p *db.Product) error
}

type Issues interface {
	SaveIssue(ctx context.Context, metaID, reason, details string) error
	ClearIssues(ctx context.Context, metaID string) error
}

type Mapper interface {
	Map(ctx context.Context, ext *dopigo.Product, existing *db.Product, skipImages bool) (*db.Product, error)
}

type Progress interface {
	Start(ctx context.Context, key string, total int) error
	Update(ctx context.Context, key string, fn func(*progress.Record)) error
}

type Importer struct {
	log      zerolog.Logger
	products Products
	issues   Issues
	mapper   Mapper
	progress Progress
	now      func() time.Time
}

func New(log zerolog.Logger, products Products, issues Issues, mapper Mapper, prog Progress) *Importer {
	return &Importer{
		log:      log.With().Str("component", "importer").Logger(),
		products: products,
		issues:   issues,
		mapper:   mapper,
		progress: prog,
		now:      time.Now,
	}
}

type Failure struct {
	Index  int    `json:"index"`
	MetaID string `json:"meta_id"`
	Error  string `json:"error"`
}

type Result struct {
	IDs      []uint    `json:"product_ids"`
	Total    int       `json:"total"`
	Success  int       `json:"success"`
	Errors   int       `json:"errors"`
	Failures []Failure `json:"failures,omitempty"`
	// Err – błędy pozycji zebrane przez multierr; batch i tak dochodzi do końca.
	Err error `json:"-"`
}

// Import przetwarza rekordy po kolei. Błąd pozycji nigdy nie przerywa batcha.
// Pusty progressKey = bez śledzenia postępu.
func (im *Importer) Import(ctx context.Context, records []json.RawMessage, skipImages bool, progressKey string) *Result {
	res := &Result{IDs: []uint{}, Total: len(records)}
	im.log.Info().Int("total", res.Total).Bool("skip_images", skipImages).Msg("batch import start")

	if progressKey != "" {
		im.track(progressKey, func() error { return im.progress.Start(ctx, progressKey, res.Total) })
	}

	for idx, raw := range records {
		num := idx + 1
		ext, verr := decode(raw, num)

		if progressKey != "" {
			name := ext.Name
			if name == "" {
				name = "Unknown Product"
			}
			metaID := ext.MetaID.String()
			im.update(ctx, progressKey, func(r *progress.Record) {
				r.Push(progress.RecentItem{
					Index:  idx,
					Name:   name,
					MetaID: metaID,
					Status: progress.StatusProcessing,
					Time:   im.now().Unix(),
				})
				r.Processed = num
				r.Success = res.Success
				r.Errors = res.Errors
				r.CurrentProduct = name
				r.CurrentMetaID = metaID
				r.Status = progress.StatusRunning
			})
		}

		var (
			p       *db.Product
			outcome string
			err     = verr
		)
		if err == nil {
			if num == 1 || num%progressEvery == 0 {
				im.log.Debug().Int("n", num).Int("total", res.Total).Str("meta_id", ext.MetaID.String()).Msg("processing product")
			}
			p, outcome, err = im.importOne(ctx, ext, skipImages, num)
		}

		if err != nil {
			res.Errors++
			msg := err.Error()
			res.Failures = append(res.Failures, Failure{Index: idx, MetaID: ext.MetaID.String(), Error: msg})
			res.Err = multierr.Append(res.Err, fmt.Errorf("product #%d (meta_id: %s): %w", num, metaIDOrUnknown(ext), err))

			reason := reasonMapping
			if errors.Is(err, ErrValidation) {
				reason = reasonValidation
				metrics.RecordItem(metrics.OutcomeInvalid)
			} else {
				metrics.RecordItem(metrics.OutcomeFailed)
			}
			im.log.Error().Err(err).Int("n", num).Str("meta_id", metaIDOrUnknown(ext)).Msg("import error")
			if ext.MetaID != "" {
				if ierr := im.issues.SaveIssue(ctx, ext.MetaID.String(), reason, msg); ierr != nil {
					im.log.Warn().Err(ierr).Msg("save import issue failed")
				}
			}
			if progressKey != "" {
				im.update(ctx, progressKey, func(r *progress.Record) {
					r.Amend(idx, func(it *progress.RecentItem) {
						it.Status = progress.StatusError
						it.Error = msg
					})
					r.Errors = res.Errors
				})
			}
			continue
		}

		res.IDs = append(res.IDs, p.ID)
		res.Success++
		metrics.RecordItem(outcome)
		if ierr := im.issues.ClearIssues(ctx, p.MetaID); ierr != nil {
			im.log.Warn().Err(ierr).Msg("clear import issues failed")
		}
		if num <= detailedItems {
			im.log.Debug().Str("meta_id", p.MetaID).Uint("id", p.ID).Str("outcome", outcome).Msg("product imported")
		}
		if progressKey != "" {
			id := p.ID
			im.update(ctx, progressKey, func(r *progress.Record) {
				r.Amend(idx, func(it *progress.RecentItem) {
					it.Status = progress.StatusSuccess
					it.LocalID = id
				})
				r.Success = res.Success
			})
		}
	}

	im.log.Info().Int("success", res.Success).Int("errors", res.Errors).Int("total", res.Total).Msg("batch import complete")

	if progressKey != "" {
		im.update(ctx, progressKey, func(r *progress.Record) {
			r.Processed = res.Total
			r.Success = res.Success
			r.Errors = res.Errors
			r.Status = progress.StatusCompleted
			r.EndTime = im.now().Unix()
			r.ProductIDs = res.IDs
		})
	}
	return res
}

// importOne: Active → update, SoftDeleted → przywróć i update, Absent → utwórz.
func (im *Importer) importOne(ctx context.Context, ext *dopigo.Product, skipImages bool, num int) (*db.Product, string, error) {
	existing, outcome, err := im.resolve(ctx, ext.MetaID.String(), num)
	if err != nil {
		return nil, "", err
	}

	p, err := im.mapper.Map(ctx, ext, existing, skipImages)
	if err != nil && existing == nil && errors.Is(err, store.ErrDuplicate) {
		// utworzony w międzyczasie przez inny sync – aktualizujemy zwycięzcę
		im.log.Warn().Str("meta_id", ext.MetaID.String()).Msg("lost create race, updating existing product")
		if existing, outcome, err = im.resolve(ctx, ext.MetaID.String(), num); err != nil {
			return nil, "", err
		}
		p, err = im.mapper.Map(ctx, ext, existing, skipImages)
	}
	if err != nil {
		return nil, "", err
	}
	return p, outcome, nil
}

func (im *Importer) resolve(ctx context.Context, metaID string, num int) (*db.Product, string, error) {
	p, lc, err := im.products.FindProduct(ctx, metaID)
	if err != nil {
		return nil, "", err
	}
	switch lc {
	case store.Active:
		if num <= detailedItems {
			im.log.Debug().Str("meta_id", metaID).Uint("id", p.ID).Msg("product exists, updating")
		}
		return p, metrics.OutcomeUpdated, nil
	case store.SoftDeleted:
		if err := im.products.RestoreProduct(ctx, p); err != nil {
			return nil, "", err
		}
		im.log.Info().Str("meta_id", metaID).Uint("id", p.ID).Msg("restored product from trash")
		return p, metrics.OutcomeRestored, nil
	default:
		if num <= detailedItems {
			im.log.Debug().Str("meta_id", metaID).Msg("product not found, creating")
		}
		return nil, metrics.OutcomeCreated, nil
	}
}

// decode zawsze zwraca niepusty wskaźnik, żeby nazwa i meta_id trafiły do postępu także przy błędzie.
func decode(raw json.RawMessage, num int) (*dopigo.Product, error) {
	var ext dopigo.Product
	if err := json.Unmarshal(raw, &ext); err != nil {
		var loose struct {
			Name   string            `json:"name"`
			MetaID dopigo.FlexString `json:"meta_id"`
		}
		_ = json.Unmarshal(raw, &loose)
		ext = dopigo.Product{Name: loose.Name, MetaID: loose.MetaID}
		return &ext, fmt.Errorf("%w: product #%d: %v", ErrValidation, num, err)
	}
	if ext.MetaID == "" {
		return &ext, fmt.Errorf("%w: product #%d: missing meta_id", ErrValidation, num)
	}
	if len(ext.Products) == 0 {
		return &ext, fmt.Errorf("%w: product #%d (meta_id: %s): missing or empty products array", ErrValidation, num, ext.MetaID)
	}
	return &ext, nil
}

func metaIDOrUnknown(ext *dopigo.Product) string {
	if ext.MetaID == "" {
		return "unknown"
	}
	return ext.MetaID.String()
}

func (im *Importer) update(ctx context.Context, key string, fn func(*progress.Record)) {
	im.track(key, func() error { return im.progress.Update(ctx, key, fn) })
}

// błędy zapisu postępu nie wpływają na batch
func (im *Importer) track(key string, fn func() error) {
	if err := fn(); err != nil {
		im.log.Warn().Err(err).Str("progress_key", key).Msg("progress update failed")
	}
}
