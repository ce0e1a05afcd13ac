package integrations

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type nopIntegration struct{}

func (nopIntegration) Name() string                { return "nop" }
func (nopIntegration) Start(context.Context) error { return nil }
func (nopIntegration) Stop()                       {}

func nopFactory(zerolog.Logger, json.RawMessage, Deps) (Integration, error) {
	return nopIntegration{}, nil
}

func TestRegistry(t *testing.T) {
	Register("test-b", nopFactory)
	Register("test-a", nopFactory)

	f, ok := Get("test-a")
	assert.True(t, ok)
	assert.NotNil(t, f)
	_, ok = Get("missing")
	assert.False(t, ok)

	names := Names()
	assert.Subset(t, names, []string{"test-a", "test-b"})
	assert.IsNonDecreasing(t, names)

	assert.Panics(t, func() { Register("test-a", nopFactory) })
}
