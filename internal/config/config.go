// internal/config/config.go
package conf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/bartek5186/dopi2woo/internal/db"
	"github.com/bartek5186/dopi2woo/internal/dopigo"
)

const (
	ProgressStoreDB     = "db"
	ProgressStoreMemory = "memory"
)

// Główny config aplikacji
type Config struct {
	AutoStart           bool                       `json:"auto_start"`
	SyncIntervalSeconds int                        `json:"sync_interval_seconds"`
	HTTPAddr            string                     `json:"http_addr"`
	LogLevel            string                     `json:"log_level"`
	DB                  db.Config                  `json:"db"`
	Dopigo              DopigoConfig               `json:"dopigo"`
	Media               MediaConfig                `json:"media"`
	ProgressStore       string                     `json:"progress_store"` // db | memory
	Integrations        map[string]json.RawMessage `json:"integrations"`   // nazwa -> surowy JSON integracji
}

type DopigoConfig struct {
	dopigo.Config
	APIKey     string `json:"api_key"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	XMLFeedURL string `json:"xml_feed_url"`
	PageSize   int    `json:"page_size"`
	SkipImages bool   `json:"skip_images"`
}

type MediaConfig struct {
	Dir     string `json:"dir"`      // pusty = <appdir>/media
	BaseURL string `json:"base_url"` // publiczny prefiks URL-i mediów
}

// domyślne ustawienia integracji (zapisywane przy pierwszym uruchomieniu)
type AutoSyncDefaults struct {
	PollSec    int  `json:"poll_sec"`
	SkipImages bool `json:"skip_images"`
}

type DropDirDefaults struct {
	Dir     string `json:"dir"`
	PollSec int    `json:"poll_sec"`
}

func Default() *Config {
	rawAuto, _ := json.Marshal(AutoSyncDefaults{PollSec: 3600})
	rawDrop, _ := json.Marshal(DropDirDefaults{Dir: "./dopigo_in", PollSec: 10})
	return &Config{
		AutoStart:           false,
		SyncIntervalSeconds: 60,
		HTTPAddr:            "127.0.0.1:8089",
		LogLevel:            "info",
		DB:                  db.Config{Driver: "sqlite"},
		Dopigo: DopigoConfig{
			Config:   dopigo.Config{BaseURL: dopigo.DefaultBaseURL, RequestsPerMinute: 60},
			PageSize: dopigo.DefaultPageSize,
		},
		ProgressStore: ProgressStoreDB,
		Integrations: map[string]json.RawMessage{
			"dopigo":  rawAuto,
			"dropdir": rawDrop,
		},
	}
}

func LoadOrCreate(path string) (*Config, bool, error) {
	// upewnij się, że katalog istnieje
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return nil, false, fmt.Errorf("błąd zapisu domyślnego configa: %w", err)
			}
			cfg.ApplyEnv()
			return cfg, true, nil
		}
		return nil, false, fmt.Errorf("błąd otwierania configa: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, false, fmt.Errorf("błąd parsowania configa: %w", err)
	}
	if cfg.Integrations == nil {
		cfg.Integrations = map[string]json.RawMessage{}
	}
	if cfg.Dopigo.PageSize <= 0 {
		cfg.Dopigo.PageSize = dopigo.DefaultPageSize
	}
	if cfg.ProgressStore == "" {
		cfg.ProgressStore = ProgressStoreDB
	}
	cfg.ApplyEnv()
	return &cfg, false, nil
}

func Save(path string, cfg *Config) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// LoadEnv wczytuje opcjonalny plik .env (sekrety poza config.json).
func LoadEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("błąd wczytywania .env: %w", err)
	}
	return nil
}

// ApplyEnv nadpisuje sekrety Dopigo zmiennymi środowiskowymi.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("DOPIGO_API_KEY")); v != "" {
		c.Dopigo.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("DOPIGO_USERNAME")); v != "" {
		c.Dopigo.Username = v
	}
	if v := os.Getenv("DOPIGO_PASSWORD"); v != "" {
		c.Dopigo.Password = v
	}
}

// Helper do odczytu konkretnej integracji do struktury docelowej
func (c *Config) UnmarshalIntegration(name string, v any) error {
	raw, ok := c.Integrations[name]
	if !ok {
		return fmt.Errorf("brak integracji %q w configu", name)
	}
	return json.Unmarshal(raw, v)
}

// MediaDir – katalog na pobrane obrazki.
func (c *Config) MediaDir(appDir string) string {
	if c.Media.Dir != "" {
		return c.Media.Dir
	}
	return filepath.Join(appDir, "media")
}
