package awsprovider

import (
	"context"
	"fmt"

	"github.com/wolfeidau/catso/credentials"
)

// SSMClient is the interface for AWS SSM Parameter Store operations.
// GetParameter must return the decrypted value of SecureString parameters.
type SSMClient interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// SSM returns a Decrypter that treats each ciphertext as a parameter name.
func SSM(client SSMClient) credentials.Decrypter {
	return func(ctx context.Context, ref string) (string, error) {
		val, err := client.GetParameter(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("SSM GetParameter %q: %w", ref, err)
		}
		return val, nil
	}
}
