package syncer

import (
	"context"
	"sync"

	"github.com/bartek5186/dopi2woo/internal/kv"
)

const (
	HistoryOption = "dopigo_sync_history"
	MaxHistory    = 100
)

// Typy wpisów historii.
const (
	KindManual = "manual_sync"
	KindAuto   = "auto_sync"
	KindImport = "import"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type HistoryEntry struct {
	Timestamp     int64  `json:"timestamp"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	ProductsCount int    `json:"products_count"`
	Message       string `json:"message"`
}

// History – ograniczona lista ostatnich synchronizacji, najnowsze na końcu.
type History struct {
	opts kv.Store
	mu   sync.Mutex
}

func NewHistory(opts kv.Store) *History {
	return &History{opts: opts}
}

func (h *History) Append(ctx context.Context, e HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	list, err := h.load(ctx)
	if err != nil {
		return err
	}
	list = append(list, e)
	if len(list) > MaxHistory {
		list = append([]HistoryEntry(nil), list[len(list)-MaxHistory:]...)
	}
	return h.opts.Put(ctx, HistoryOption, list)
}

func (h *History) List(ctx context.Context) ([]HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(ctx)
}

func (h *History) load(ctx context.Context) ([]HistoryEntry, error) {
	list := []HistoryEntry{}
	if _, err := h.opts.Get(ctx, HistoryOption, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []HistoryEntry{}
	}
	return list, nil
}
