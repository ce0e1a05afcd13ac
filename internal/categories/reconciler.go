// Package categories mapuje kategorie Dopigo na drzewo kategorii sklepu.
package categories

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bartek5186/dopi2woo/internal/dopigo"
	"github.com/bartek5186/dopi2woo/internal/kv"
)

const (
	MapOption     = "dopigo_category_map"
	PendingOption = "dopigo_category_pending"
)

// ErrUnresolved – ścieżki kategorii nie da się zbudować; id trafia do pending.
var ErrUnresolved = errors.New("categories: unresolved category")

// Terms to operacje na taksonomii, z których korzysta reconciler.
type Terms interface {
	FindTerm(ctx context.Context, name string, parentID uint) (uint, bool, error)
	CreateTerm(ctx context.Context, name string, parentID uint) (uint, error)
	TermExists(ctx context.Context, id uint) (bool, error)
	FindTermByDopigoID(ctx context.Context, dopigoID int64) (uint, bool, error)
	SetTermDopigoID(ctx context.Context, termID uint, dopigoID int64) error
}

type Reconciler struct {
	log   zerolog.Logger
	terms Terms
	opts  kv.Store
	mu    sync.Mutex // read-modify-write opcji mapy i pending
}

func New(log zerolog.Logger, terms Terms, opts kv.Store) *Reconciler {
	return &Reconciler{
		log:   log.With().Str("component", "categories").Logger(),
		terms: terms,
		opts:  opts,
	}
}

// SplitPath dzieli "A > B > C" na segmenty, bez pustych.
func SplitPath(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, dopigo.PathSeparator) {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// Lookup rozwiązuje istniejące mapowanie: opcja (z kontrolą istnienia termu), potem metadane termu.
func (r *Reconciler) Lookup(ctx context.Context, dopigoID int64) (uint, bool, error) {
	if dopigoID <= 0 {
		return 0, false, nil
	}
	m, err := r.loadMap(ctx)
	if err != nil {
		return 0, false, err
	}
	if termID, ok := m[dopigoID]; ok && termID > 0 {
		exists, err := r.terms.TermExists(ctx, termID)
		if err != nil {
			return 0, false, err
		}
		if exists {
			return termID, true, nil
		}
	}

	termID, ok, err := r.terms.FindTermByDopigoID(ctx, dopigoID)
	if err != nil || !ok {
		return 0, false, err
	}
	if err := r.RegisterMapping(ctx, dopigoID, termID); err != nil {
		return 0, false, err
	}
	r.log.Debug().Int64("dopigo_id", dopigoID).Uint("term_id", termID).Msg("mapping restored from term meta")
	return termID, true, nil
}

// Ensure zapewnia łańcuch kategorii dla ścieżki i zapisuje mapowanie.
// ok=false bez błędu gdy brak danych wejściowych, ErrUnresolved gdy utworzenie termu się nie udało.
func (r *Reconciler) Ensure(ctx context.Context, dopigoID int64, fullPath string) (uint, bool, error) {
	if dopigoID <= 0 || strings.TrimSpace(fullPath) == "" {
		return 0, false, nil
	}

	termID, ok, err := r.Lookup(ctx, dopigoID)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return termID, true, r.ClearPending(ctx, dopigoID)
	}

	segs := SplitPath(fullPath)
	if len(segs) == 0 {
		return 0, false, nil
	}

	var parent uint
	for _, seg := range segs {
		id, found, err := r.terms.FindTerm(ctx, seg, parent)
		if err != nil {
			return 0, false, fmt.Errorf("%w: find %q: %v", ErrUnresolved, seg, err)
		}
		if !found {
			id, err = r.terms.CreateTerm(ctx, seg, parent)
			if err != nil {
				return 0, false, fmt.Errorf("%w: create %q: %v", ErrUnresolved, seg, err)
			}
			r.log.Debug().Str("name", seg).Uint("parent", parent).Uint("term_id", id).Msg("term created")
		}
		parent = id
	}

	if err := r.RegisterMapping(ctx, dopigoID, parent); err != nil {
		return 0, false, err
	}
	return parent, true, r.ClearPending(ctx, dopigoID)
}

// RegisterMapping zapisuje mapowanie w opcji i w metadanej termu.
func (r *Reconciler) RegisterMapping(ctx context.Context, dopigoID int64, termID uint) error {
	if dopigoID <= 0 || termID == 0 {
		return nil
	}
	if err := r.terms.SetTermDopigoID(ctx, termID, dopigoID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.loadMap(ctx)
	if err != nil {
		return err
	}
	m[dopigoID] = termID
	return r.opts.Put(ctx, MapOption, m)
}

// Mapping zwraca kopię mapy dopigo_id → term_id.
func (r *Reconciler) Mapping(ctx context.Context) (map[int64]uint, error) {
	return r.loadMap(ctx)
}

func (r *Reconciler) MarkPending(ctx context.Context, dopigoID int64) error {
	if dopigoID <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	pending, err := r.loadPending(ctx)
	if err != nil {
		return err
	}
	for _, id := range pending {
		if id == dopigoID {
			return nil
		}
	}
	return r.opts.Put(ctx, PendingOption, append(pending, dopigoID))
}

func (r *Reconciler) ClearPending(ctx context.Context, dopigoID int64) error {
	if dopigoID <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	pending, err := r.loadPending(ctx)
	if err != nil || len(pending) == 0 {
		return err
	}
	kept := pending[:0]
	for _, id := range pending {
		if id != dopigoID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(pending) {
		return nil
	}
	return r.opts.Put(ctx, PendingOption, kept)
}

func (r *Reconciler) ListPending(ctx context.Context) ([]int64, error) {
	pending, err := r.loadPending(ctx)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []int64{}
	}
	return pending, nil
}

// FeedReport – podsumowanie importu feedu kategorii.
type FeedReport struct {
	Created int     `json:"created"`
	Updated int     `json:"updated"`
	Skipped []int64 `json:"skipped"`
	Pending []int64 `json:"pending"`
}

// ImportFeed przetwarza dokument XML z kategoriami.
func (r *Reconciler) ImportFeed(ctx context.Context, raw []byte) (*FeedReport, error) {
	items, err := dopigo.ParseCategoryFeed(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	rep := &FeedReport{Skipped: []int64{}}
	for _, it := range items {
		if it.ID <= 0 {
			continue
		}
		path := it.Path()
		if len(SplitPath(path)) == 0 {
			if err := r.MarkPending(ctx, it.ID); err != nil {
				return nil, err
			}
			rep.Skipped = append(rep.Skipped, it.ID)
			continue
		}

		_, existed, err := r.Lookup(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		_, ok, err := r.Ensure(ctx, it.ID, path)
		if err != nil && !errors.Is(err, ErrUnresolved) {
			return nil, err
		}
		if !ok {
			r.log.Warn().Err(err).Int64("dopigo_id", it.ID).Str("path", path).Msg("category unresolved, marked pending")
			if err := r.MarkPending(ctx, it.ID); err != nil {
				return nil, err
			}
			rep.Skipped = append(rep.Skipped, it.ID)
			continue
		}
		if existed {
			rep.Updated++
		} else {
			rep.Created++
		}
	}

	if rep.Pending, err = r.ListPending(ctx); err != nil {
		return nil, err
	}
	r.log.Info().
		Int("items", len(items)).
		Int("created", rep.Created).
		Int("updated", rep.Updated).
		Int("skipped", len(rep.Skipped)).
		Msg("category feed imported")
	return rep, nil
}

func (r *Reconciler) loadMap(ctx context.Context) (map[int64]uint, error) {
	m := map[int64]uint{}
	if _, err := r.opts.Get(ctx, MapOption, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[int64]uint{}
	}
	return m, nil
}

func (r *Reconciler) loadPending(ctx context.Context) ([]int64, error) {
	var pending []int64
	if _, err := r.opts.Get(ctx, PendingOption, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}
