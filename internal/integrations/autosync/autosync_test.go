package autosync

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartek5186/dopi2woo/internal/importer"
	"github.com/bartek5186/dopi2woo/internal/integrations"
	"github.com/bartek5186/dopi2woo/internal/testutil"
)

type fakeRunner struct {
	calls atomic.Int32
	kinds chan string
	err   error
}

func (f *fakeRunner) RunSync(_ context.Context, kind, _ string) (*importer.Result, error) {
	f.calls.Add(1)
	select {
	case f.kinds <- kind:
	default:
	}
	if f.err != nil {
		return nil, f.err
	}
	return &importer.Result{Total: 1, Success: 1}, nil
}

func (f *fakeRunner) ImportRecords(context.Context, []json.RawMessage, string) *importer.Result {
	return &importer.Result{}
}

func TestRegistered(t *testing.T) {
	_, ok := integrations.Get("dopigo")
	assert.True(t, ok)
}

func TestRunOnStartAndStop(t *testing.T) {
	for _, failing := range []bool{false, true} {
		fr := &fakeRunner{kinds: make(chan string, 4)}
		if failing {
			fr.err = errors.New("boom")
		}
		intg, err := factory(testutil.Logger(), json.RawMessage(`{"poll_sec":3600,"run_on_start":true}`), integrations.Deps{Sync: fr})
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- intg.Start(context.Background()) }()

		select {
		case kind := <-fr.kinds:
			assert.Equal(t, "auto_sync", kind)
		case <-time.After(2 * time.Second):
			t.Fatal("sync was not run on start")
		}
		intg.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("integration did not stop")
		}
		assert.Equal(t, int32(1), fr.calls.Load())
	}
}

func TestFactoryErrors(t *testing.T) {
	_, err := factory(testutil.Logger(), json.RawMessage(`{`), integrations.Deps{Sync: &fakeRunner{}})
	assert.Error(t, err)
	_, err = factory(testutil.Logger(), json.RawMessage(`{}`), integrations.Deps{})
	assert.ErrorIs(t, err, errMissingRunner)
}
