// internal/syncer/syncer.go
package syncer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	conf "github.com/bartek5186/dopi2woo/internal/config"
	"github.com/bartek5186/dopi2woo/internal/integrations"
	_ "github.com/bartek5186/dopi2woo/internal/integrations/autosync" // rejestracja "dopigo"
	_ "github.com/bartek5186/dopi2woo/internal/integrations/dropdir"  // rejestracja "dropdir"
)

// Purger czyści wygasłe rekordy postępu.
type Purger interface {
	Purge(ctx context.Context, before time.Time) error
}

// wrapper na uruchomioną integrację (np. dopigo i dropdir)
type runningInt struct {
	Name string
	Inst integrations.Integration
}

type Syncer struct {
	log     zerolog.Logger
	deps    integrations.Deps
	purger  Purger
	mu      sync.Mutex
	cfg     *conf.Config
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	ticks   uint64
	ints    []runningInt
	now     func() time.Time
}

func New(log zerolog.Logger, cfg *conf.Config, deps integrations.Deps, purger Purger) *Syncer {
	return &Syncer{log: log, cfg: cfg, deps: deps, purger: purger, now: time.Now}
}

func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.ticks = 0
	s.wg.Add(1)

	ints := s.buildIntegrationsLocked()
	s.ints = ints
	s.mu.Unlock()

	s.log.Info().Msg("Syncer: start")
	go s.loop(ctx)

	// każda integracja w swojej gorutinie
	for i := range ints {
		s.wg.Add(1)
		go func(intg integrations.Integration) {
			defer s.wg.Done()
			if err := intg.Start(ctx); err != nil {
				s.log.Error().Err(err).Str("integration", intg.Name()).Msg("zakończona z błędem")
			}
		}(ints[i].Inst)
	}
	return nil
}

func (s *Syncer) buildIntegrationsLocked() []runningInt {
	var out []runningInt
	if s.cfg == nil || len(s.cfg.Integrations) == 0 {
		s.log.Warn().Msg("Integrations: brak lub puste (sprawdź config.json)")
		return out
	}
	s.log.Info().Int("count", len(s.cfg.Integrations)).Msg("Integrations in config")
	names := make([]string, 0, len(s.cfg.Integrations))
	for name := range s.cfg.Integrations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw := s.cfg.Integrations[name]
		f, ok := integrations.Get(name)
		if !ok {
			s.log.Warn().Str("integration", name).Msg("brak fabryki – pomijam")
			continue
		}
		inst, err := f(s.log.With().Str("integration", name).Logger(), raw, s.deps)
		if err != nil {
			s.log.Error().Err(err).Str("integration", name).Msg("błąd inicjalizacji")
			continue
		}
		out = append(out, runningInt{Name: name, Inst: inst})
	}
	s.log.Info().Int("started", len(out)).Msg("Integrations built")
	return out
}

func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	ints := s.ints
	s.ints = nil
	s.cancel = nil
	s.mu.Unlock()

	for _, ri := range ints {
		ri.Inst.Stop()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("Syncer: stop")
}

func (s *Syncer) UpdateConfig(cfg *conf.Config) {
	s.mu.Lock()
	s.cfg = cfg
	isRunning := s.running
	s.mu.Unlock()

	if r, ok := s.deps.Sync.(*Runner); ok && cfg != nil {
		r.UpdateConfig(cfg.Dopigo)
	}
	s.log.Info().Msg("Syncer: config zaktualizowany")

	if isRunning {
		// restart integracji, żeby wzięły nową konfigurację
		s.Stop()
		_ = s.Start(context.Background())
	}
}

func (s *Syncer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Integrations – nazwy aktualnie uruchomionych integracji.
func (s *Syncer) Integrations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ints))
	for _, ri := range s.ints {
		out = append(out, ri.Name)
	}
	return out
}

func (s *Syncer) interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg != nil && s.cfg.SyncIntervalSeconds > 0 {
		return time.Duration(s.cfg.SyncIntervalSeconds) * time.Second
	}
	return time.Minute
}

func (s *Syncer) loop(ctx context.Context) {
	defer s.wg.Done()

	s.tickOnce(ctx)

	cur := s.interval()
	ticker := time.NewTicker(cur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Syncer: koniec pętli")
			return
		case <-ticker.C:
			// interwał mógł się zmienić w cfg
			if next := s.interval(); next != cur {
				cur = next
				ticker.Reset(cur)
			}
			s.tickOnce(ctx)
		}
	}
}

// tickOnce – heartbeat: sprzątanie wygasłych rekordów postępu.
func (s *Syncer) tickOnce(ctx context.Context) {
	s.mu.Lock()
	s.ticks++
	n := s.ticks
	s.mu.Unlock()

	if s.purger != nil {
		if err := s.purger.Purge(ctx, s.now()); err != nil {
			s.log.Warn().Err(err).Msg("Syncer: purge progress nieudany")
		}
	}
	s.log.Debug().Uint64("tick", n).Msg("Syncer: heartbeat")
}
