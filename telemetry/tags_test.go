package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInjectTags_DefaultsCacheResultToNA(t *testing.T) {
	ctx := InjectTags(context.Background())
	tags := GetTags(ctx)
	require.NotNil(t, tags)
	require.Equal(t, CacheNA, tags.CacheResult)
	require.Empty(t, tags.RequestType)
	require.Empty(t, tags.Intent)
}

func TestGetTags_NilWithoutInject(t *testing.T) {
	require.Nil(t, GetTags(context.Background()))
}

func TestSetters_NoopWithoutInject(t *testing.T) {
	ctx := context.Background()
	SetRequestType(ctx, "LaunchRequest")
	SetIntent(ctx, "AMAZON.HelpIntent")
	SetCacheResult(ctx, CacheHit)
	require.Nil(t, GetTags(ctx))
}

func TestTagsMutationVisibleThroughDerivedContext(t *testing.T) {
	ctx := InjectTags(context.Background())
	child, cancel := context.WithCancel(ctx)
	defer cancel()

	SetRequestType(child, "IntentRequest")
	SetIntent(child, "GETCATPHOTOINTENT")
	SetCacheResult(child, CacheStale)

	tags := GetTags(ctx)
	require.Equal(t, "IntentRequest", tags.RequestType)
	require.Equal(t, "GETCATPHOTOINTENT", tags.Intent)
	require.Equal(t, CacheStale, tags.CacheResult)
}

func TestWithTarget(t *testing.T) {
	require.Empty(t, TargetFromContext(context.Background()))

	ctx := WithTarget(context.Background(), "token")
	require.Equal(t, "token", TargetFromContext(ctx))
}
