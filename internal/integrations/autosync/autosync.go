// Package autosync – cykliczna pełna synchronizacja katalogu Dopigo (integracja "dopigo").
package autosync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bartek5186/dopi2woo/internal/integrations"
)

const kindAuto = "auto_sync"

var errMissingRunner = errors.New("autosync: brak SyncRunner w zależnościach")

type Config struct {
	PollSec    int  `json:"poll_sec"`     // co ile sekund pełny sync
	RunOnStart bool `json:"run_on_start"` // pierwszy sync od razu po starcie
}

type AutoSync struct {
	log    zerolog.Logger
	cfg    Config
	runner integrations.SyncRunner

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func (a *AutoSync) Name() string { return "dopigo" }

func (a *AutoSync) Start(ctx context.Context) error {
	a.mu.Lock()
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()
	a.log.Info().Str("integration", a.Name()).Dur("every", a.interval()).Msg("start")

	ticker := time.NewTicker(a.interval())
	defer ticker.Stop()

	if a.cfg.RunOnStart {
		a.tick()
	}

	for {
		select {
		case <-a.ctx.Done():
			a.log.Info().Str("integration", a.Name()).Msg("stop")
			return nil
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *AutoSync) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *AutoSync) interval() time.Duration {
	sec := a.cfg.PollSec
	if sec <= 0 {
		sec = 3600
	}
	return time.Duration(sec) * time.Second
}

// tick – jeden pełny sync; błąd trafia do logów i historii, pętla leci dalej.
func (a *AutoSync) tick() {
	res, err := a.runner.RunSync(a.ctx, kindAuto, "")
	if err != nil {
		a.log.Error().Err(err).Str("integration", a.Name()).Msg("auto sync failed")
		return
	}
	a.log.Info().
		Str("integration", a.Name()).
		Int("success", res.Success).
		Int("errors", res.Errors).
		Msg("auto sync done")
}

func factory(log zerolog.Logger, raw json.RawMessage, deps integrations.Deps) (integrations.Integration, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if deps.Sync == nil {
		return nil, errMissingRunner
	}
	return &AutoSync{log: log, cfg: cfg, runner: deps.Sync}, nil
}

func init() {
	integrations.Register("dopigo", factory)
}
