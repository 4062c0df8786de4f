package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/catso"
)

func TestWarmerRunOnce(t *testing.T) {
	env := newTestEnv(t)
	w := NewWarmer(env.manager, "", time.Minute)

	result, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, Miss, result)

	result, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, Hit, result)
	require.EqualValues(t, 1, env.fetcher.calls.Load())
}

func TestWarmerRunOnceError(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.err = fmt.Errorf("%w: down", catso.ErrUpstreamFetchFailed)

	_, err := NewWarmer(env.manager, "cats", time.Minute).RunOnce(context.Background())
	require.ErrorIs(t, err, catso.ErrUpstreamFetchFailed)
}

func TestWarmerDefaultInterval(t *testing.T) {
	env := newTestEnv(t)
	w := NewWarmer(env.manager, "", 0)
	require.Equal(t, 30*time.Minute, w.interval)
	require.Equal(t, "cats", w.category)
}

func TestWarmerStartStop(t *testing.T) {
	env := newTestEnv(t)
	w := NewWarmer(env.manager, "cats", 10*time.Millisecond)

	w.Start(context.Background())
	w.Start(context.Background())

	require.Eventually(t, func() bool {
		_, err := env.manager.Read(context.Background())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	w.Stop()
	w.Stop()

	calls := env.fetcher.calls.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, calls, env.fetcher.calls.Load())
}

func TestWarmerStopsOnContextCancel(t *testing.T) {
	env := newTestEnv(t)
	w := NewWarmer(env.manager, "cats", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	select {
	case <-w.doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("warmer did not stop after context cancel")
	}
}

func TestWarmerStopWithoutStart(t *testing.T) {
	env := newTestEnv(t)
	w := NewWarmer(env.manager, "cats", time.Minute)
	w.Stop()
}
