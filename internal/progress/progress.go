// Package progress – krótko żyjące rekordy postępu importu, odpytywane przez UI/CLI po kluczu.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// TTL liczony od ostatniego zapisu, niezależnie od zakończenia batcha.
	TTL      = 10 * time.Minute
	RingSize = 10
)

// ErrNotFound: klucza nie ma albo wygasł; Update go nie odtwarza.
var ErrNotFound = errors.New("progress record not found")

const (
	StatusRunning    = "running"
	StatusCompleted  = "completed"
	StatusError      = "error"
	StatusProcessing = "processing"
	StatusSuccess    = "success"
)

type RecentItem struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	MetaID  string `json:"meta_id"`
	Status  string `json:"status"`
	Time    int64  `json:"time"`
	LocalID uint   `json:"local_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Record struct {
	Total          int          `json:"total"`
	Processed      int          `json:"processed"`
	Success        int          `json:"success"`
	Errors         int          `json:"errors"`
	CurrentProduct string       `json:"current_product"`
	CurrentMetaID  string       `json:"current_meta_id"`
	Status         string       `json:"status"`
	Message        string       `json:"message,omitempty"`
	RecentProducts []RecentItem `json:"recent_products"`
	StartTime      int64        `json:"start_time"`
	EndTime        int64        `json:"end_time,omitempty"`
	Duration       float64      `json:"duration,omitempty"`
	ProductIDs     []uint       `json:"product_ids,omitempty"`
}

// Push dopisuje pozycję do pierścienia ostatnich RingSize produktów.
func (r *Record) Push(it RecentItem) {
	r.RecentProducts = append(r.RecentProducts, it)
	if n := len(r.RecentProducts); n > RingSize {
		r.RecentProducts = append([]RecentItem(nil), r.RecentProducts[n-RingSize:]...)
	}
}

// Amend zmienia pozycję o danym indeksie; false gdy już wypadła z pierścienia.
func (r *Record) Amend(index int, fn func(*RecentItem)) bool {
	for i := len(r.RecentProducts) - 1; i >= 0; i-- {
		if r.RecentProducts[i].Index == index {
			fn(&r.RecentProducts[i])
			return true
		}
	}
	return false
}

// Store trzyma zserializowane rekordy razem z czasem wygaśnięcia.
type Store interface {
	Load(ctx context.Context, key string) (data []byte, expiresAt time.Time, found bool, err error)
	Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
	Purge(ctx context.Context, before time.Time) error
}

type Tracker struct {
	store Store
	now   func() time.Time
	log   zerolog.Logger
	mu    sync.Mutex
}

func New(s Store, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: s, now: now, log: zerolog.Nop()}
}

func (t *Tracker) SetLogger(l zerolog.Logger) {
	t.mu.Lock()
	t.log = l
	t.mu.Unlock()
}

// NewKey: sync_<unix>_<8 znaków>.
func NewKey(now time.Time) string {
	return fmt.Sprintf("sync_%d_%s", now.Unix(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (t *Tracker) Start(ctx context.Context, key string, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if err := t.store.Purge(ctx, now); err != nil {
		t.log.Warn().Err(err).Str("progress_key", key).Msg("progress purge failed")
	}
	return t.save(ctx, key, &Record{
		Total:          total,
		Status:         StatusRunning,
		StartTime:      now.Unix(),
		RecentProducts: []RecentItem{},
	})
}

// Update modyfikuje rekord i przedłuża TTL. Wygasły lub brakujący klucz daje ErrNotFound,
// bez zapisu: pusty rekord zgubiłby Total i StartTime.
func (t *Tracker) Update(ctx context.Context, key string, fn func(*Record)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, _, err := t.load(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("progress update %s: %w", key, ErrNotFound)
	}
	fn(rec)
	return t.save(ctx, key, rec)
}

// Get – rekord albo found=false, gdy klucza nie ma lub wygasł.
func (t *Tracker) Get(ctx context.Context, key string) (*Record, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, _, err := t.load(ctx, key)
	if err != nil || rec == nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (t *Tracker) Fail(ctx context.Context, key, message string) error {
	return t.Update(ctx, key, func(r *Record) {
		r.Status = StatusError
		r.Message = message
		r.EndTime = t.now().Unix()
	})
}

func (t *Tracker) Clear(ctx context.Context, key string) error {
	return t.store.Delete(ctx, key)
}

func (t *Tracker) load(ctx context.Context, key string) (*Record, time.Time, error) {
	raw, exp, ok, err := t.store.Load(ctx, key)
	if err != nil {
		return nil, exp, fmt.Errorf("progress load %s: %w", key, err)
	}
	if !ok {
		return nil, exp, nil
	}
	if !t.now().Before(exp) {
		_ = t.store.Delete(ctx, key)
		return nil, exp, nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, exp, fmt.Errorf("progress decode %s: %w", key, err)
	}
	return &rec, exp, nil
}

func (t *Tracker) save(ctx context.Context, key string, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := t.store.Save(ctx, key, raw, t.now().Add(TTL)); err != nil {
		return fmt.Errorf("progress save %s: %w", key, err)
	}
	return nil
}
