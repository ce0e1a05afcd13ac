// Package store to warstwa zapisu lokalnego sklepu (produkty, warianty, kategorie, media, problemy importu) na gormie.
package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrPersistence – baza odrzuciła zapis (constraint, błąd SQL).
	ErrPersistence = errors.New("store: persistence failure")
	// ErrDuplicate – konflikt unikalnego klucza korelacji (równoległy sync utworzył rekord pierwszy).
	ErrDuplicate = fmt.Errorf("%w: duplicate correlation key", ErrPersistence)
	ErrNotFound  = errors.New("store: not found")
)

// Lifecycle to wynik wyszukania produktu po meta_id.
type Lifecycle int

const (
	Absent Lifecycle = iota
	Active
	SoftDeleted
)

func (l Lifecycle) String() string {
	switch l {
	case Active:
		return "active"
	case SoftDeleted:
		return "trashed"
	default:
		return "absent"
	}
}

type Store struct {
	db *gorm.DB
}

func New(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// DB – surowy uchwyt (drop-dir trzyma własną księgowość plików).
func (s *Store) DB() *gorm.DB { return s.db }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
}

// sqlite (glebarez) nie zawsze tłumaczy błąd na gorm.ErrDuplicatedKey
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
