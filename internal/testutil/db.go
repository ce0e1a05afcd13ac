// Package testutil zawiera pomocnicze rzeczy do testów pakietów opartych o bazę.
package testutil

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bartek5186/dopi2woo/internal/db"
)

// NewDB otwiera świeżą bazę sqlite w katalogu tymczasowym testu i robi migrację.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	h, err := db.OpenAt(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, h.Migrate())
	t.Cleanup(func() { _ = h.Close() })
	return h.DB
}

// Logger zwraca logger, który nic nie wypisuje.
func Logger() zerolog.Logger {
	return zerolog.New(io.Discard)
}
