package cache

import (
	"context"

	"github.com/wolfeidau/catso"
	"golang.org/x/sync/singleflight"
)

// refreshFunc rebuilds the record for one category. The context it receives
// is detached from the caller that started the refresh.
type refreshFunc func(ctx context.Context) ([]catso.ImagePair, error)

// refreshGroup collapses concurrent refreshes of the same category into one.
// It uses DoChan so each caller can respect its own deadline without
// cancelling the in-flight refresh for the others.
type refreshGroup struct {
	group singleflight.Group
}

// do runs fn once per key at a time. It returns the images, whether the
// result was shared with another caller, and any error.
//
// If ctx expires first, do returns the context error and the refresh
// carries on for other waiters.
func (g *refreshGroup) do(ctx context.Context, key string, fn refreshFunc) ([]catso.ImagePair, bool, error) {
	ch := g.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		return res.Val.([]catso.ImagePair), res.Shared, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
