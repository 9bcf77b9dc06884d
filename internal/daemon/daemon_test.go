package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaults(t *testing.T) {
	logging.SetupTest()
	d := New(config.Daemon{BatchCron: "0 */3 * * *", IndexRetryCron: "0 9 * * *"}, time.UTC)
	noop := func(context.Context) error { return nil }

	require.NoError(t, d.RegisterDefaults(context.Background(), noop, noop))
	assert.Equal(t, 2, d.Len())
}

func TestRegister_EmptyCronDisables(t *testing.T) {
	logging.SetupTest()
	d := New(config.Daemon{IndexRetryCron: "0 9 * * *"}, time.UTC)
	noop := func(context.Context) error { return nil }

	require.NoError(t, d.RegisterDefaults(context.Background(), noop, noop))
	assert.Equal(t, 1, d.Len())
	assert.Error(t, d.Trigger(context.Background(), TagBatch))
}

func TestRegister_InvalidCron(t *testing.T) {
	logging.SetupTest()
	d := New(config.Daemon{}, time.UTC)
	err := d.Register(context.Background(), TagBatch, "every tuesday", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestTrigger_CarriesRunID(t *testing.T) {
	logging.SetupTest()
	d := New(config.Daemon{}, time.UTC)

	var runID string
	calls := 0
	require.NoError(t, d.Register(context.Background(), TagIndexRetry, "0 9 * * *", func(ctx context.Context) error {
		calls++
		runID = logging.RunID(ctx)
		return errors.New("quota")
	}))

	require.NoError(t, d.Trigger(context.Background(), TagIndexRetry))
	assert.Equal(t, 1, calls)
	assert.NotEmpty(t, runID)
}

func TestRun_StopsOnCancel(t *testing.T) {
	logging.SetupTest()
	d := New(config.Daemon{}, time.UTC)
	require.NoError(t, d.Register(context.Background(), TagBatch, "0 0 1 1 *", func(context.Context) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
