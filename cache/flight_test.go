package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/catso"
)

func TestRefreshGroupSingleCall(t *testing.T) {
	var g refreshGroup
	want := []catso.ImagePair{{Small: "s", Large: "l"}}

	got, shared, err := g.do(context.Background(), "cats", func(context.Context) ([]catso.ImagePair, error) {
		return want, nil
	})
	require.NoError(t, err)
	require.False(t, shared)
	require.Equal(t, want, got)
}

func TestRefreshGroupDeduplicates(t *testing.T) {
	var g refreshGroup
	var calls atomic.Int32

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = g.do(context.Background(), "cats", func(context.Context) ([]catso.ImagePair, error) {
				calls.Add(1)
				time.Sleep(50 * time.Millisecond)
				return []catso.ImagePair{{Small: "s", Large: "l"}}, nil
			})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.EqualValues(t, 1, calls.Load())
}

func TestRefreshGroupKeysAreIndependent(t *testing.T) {
	var g refreshGroup
	var calls atomic.Int32
	fn := func(context.Context) ([]catso.ImagePair, error) {
		calls.Add(1)
		return nil, nil
	}

	_, _, err := g.do(context.Background(), "cats", fn)
	require.NoError(t, err)
	_, _, err = g.do(context.Background(), "dogs", fn)
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestRefreshGroupError(t *testing.T) {
	var g refreshGroup
	boom := errors.New("boom")

	_, _, err := g.do(context.Background(), "cats", func(context.Context) ([]catso.ImagePair, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	// A failed run is not remembered.
	got, _, err := g.do(context.Background(), "cats", func(context.Context) ([]catso.ImagePair, error) {
		return []catso.ImagePair{{Small: "s", Large: "s"}}, nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestRefreshGroupDetachedContext(t *testing.T) {
	var g refreshGroup
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, _ = g.do(ctx, "cats", func(fctx context.Context) ([]catso.ImagePair, error) {
			cancel()
			time.Sleep(20 * time.Millisecond)
			done <- fctx.Err()
			return nil, nil
		})
	}()

	require.NoError(t, <-done)
}
