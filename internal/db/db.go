package db

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	cgosqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Handle struct {
	DB     *gorm.DB
	Driver string
	Path   string
}

// Config wybiera sterownik bazy. Pusty Driver = sqlite (pure Go) w katalogu aplikacji.
type Config struct {
	Driver string `json:"driver"` // sqlite | sqlite3 | mysql | postgres
	DSN    string `json:"dsn"`
}

func OpenAt(dir string) (*Handle, error) {
	return Open(Config{}, dir)
}

func Open(cfg Config, dir string) (*Handle, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}

	var (
		dialector gorm.Dialector
		path      string
	)
	switch driver {
	case "sqlite", "sqlite3":
		path = cfg.DSN
		if path == "" {
			path = filepath.Join(dir, "dopi2woo.db")
		}
		// triggered sync i API piszą równolegle → WAL + busy_timeout
		dsn := path
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
		if driver == "sqlite" {
			dialector = sqlite.Open(dsn)
		} else {
			dialector = cgosqlite.Open(path)
		}
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("nieznany sterownik bazy %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // logger.Info jeśli chcesz verbose SQL
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	return &Handle{DB: gdb, Driver: driver, Path: path}, nil
}

func (h *Handle) Close() error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
