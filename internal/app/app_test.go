package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-workers/internal/common/config"
	"match-workers/internal/common/logger"
	"match-workers/internal/notify"
)

func TestRetry(t *testing.T) {
	log := logger.NewTestLogger(t)

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		}, 5, time.Millisecond, log, "op")
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), func() error {
			calls++
			return errors.New("down")
		}, 3, time.Millisecond, log, "op")
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "op failed after 3 attempts: down")
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Retry(ctx, func() error {
			calls++
			cancel()
			return errors.New("down")
		}, 5, time.Hour, log, "op")
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestNewNotifier_LogOnly(t *testing.T) {
	log := logger.NewTestLogger(t)

	cfg := &config.Config{}
	n, err := NewNotifier(context.Background(), cfg, &App{}, false, log)
	require.NoError(t, err)
	assert.IsType(t, &notify.LogNotifier{}, n)

	cfg.Notifications.Email.Enabled = true
	n, err = NewNotifier(context.Background(), cfg, &App{}, true, log)
	require.NoError(t, err)
	assert.IsType(t, &notify.LogNotifier{}, n)
}

func TestNewNotifier_RequiresRegion(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notifications.SMS.Enabled = true

	_, err := NewNotifier(context.Background(), cfg, &App{}, false, logger.NewTestLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region")
}
