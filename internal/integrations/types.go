// internal/integrations/types.go
package integrations

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/bartek5186/dopi2woo/internal/categories"
	"github.com/bartek5186/dopi2woo/internal/importer"
)

type Integration interface {
	Name() string
	Start(ctx context.Context) error // blokuje do ctx.Done (long-running) lub odpala własną pętlę
	Stop()                           // idempotent
}

// SyncRunner – pełna synchronizacja i import gotowych rekordów (z historią).
type SyncRunner interface {
	RunSync(ctx context.Context, kind, progressKey string) (*importer.Result, error)
	ImportRecords(ctx context.Context, records []json.RawMessage, source string) *importer.Result
}

type FeedImporter interface {
	ImportFeed(ctx context.Context, raw []byte) (*categories.FeedReport, error)
}

// Deps – zależności przekazywane integracjom przez syncer.
type Deps struct {
	DB         *gorm.DB
	Sync       SyncRunner
	Categories FeedImporter
}

type Factory func(log zerolog.Logger, raw json.RawMessage, deps Deps) (Integration, error)
