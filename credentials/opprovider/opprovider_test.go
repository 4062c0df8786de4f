package opprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/catso"
	"github.com/wolfeidau/catso/credentials"
)

func TestOnePassword_MissingBinary(t *testing.T) {
	decrypt := onePassword("catso-test-op-binary-that-does-not-exist")

	_, err := decrypt(context.Background(), "op://vault/reddit/secret")
	require.Error(t, err)
	require.Contains(t, err.Error(), "op read")
}

func TestOnePassword_FailureSurfacesThroughStore(t *testing.T) {
	s := credentials.NewStore(onePassword("catso-test-op-binary-that-does-not-exist"))

	err := s.Load(context.Background(), map[string]string{credentials.RedditClientSecret: "op://vault/reddit/secret"})
	require.ErrorIs(t, err, catso.ErrSecretsUnavailable)
}
