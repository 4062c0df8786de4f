package awsprovider

import (
	"context"
	"fmt"

	"github.com/wolfeidau/catso/credentials"
)

// SecretsManagerClient is the interface for AWS Secrets Manager operations.
type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, secretID string) (string, error)
}

// SecretsManager returns a Decrypter that treats each ciphertext as a secret id.
func SecretsManager(client SecretsManagerClient) credentials.Decrypter {
	return func(ctx context.Context, ref string) (string, error) {
		val, err := client.GetSecretValue(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("SecretsManager GetSecretValue %q: %w", ref, err)
		}
		return val, nil
	}
}
