// Package awsprovider decrypts skill secrets with AWS KMS, SSM Parameter
// Store or Secrets Manager.
package awsprovider

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/wolfeidau/catso/credentials"
)

// lambdaFunctionNameKey is the encryption context key the Lambda console's
// encryption helpers bind ciphertexts to.
const lambdaFunctionNameKey = "LambdaFunctionName"

// KMSClient is the interface for AWS KMS decrypt operations.
type KMSClient interface {
	Decrypt(ctx context.Context, ciphertext []byte, encryptionContext map[string]string) ([]byte, error)
}

// KMSOption configures the KMS decrypter.
type KMSOption func(*kmsDecrypter)

// WithEncryptionContext adds a key/value pair to the encryption context.
func WithEncryptionContext(key, value string) KMSOption {
	return func(d *kmsDecrypter) {
		d.encryptionContext[key] = value
	}
}

// WithLambdaFunctionName binds decryption to the named Lambda function, as
// ciphertexts produced by the Lambda console's encryption helpers require.
func WithLambdaFunctionName(name string) KMSOption {
	return func(d *kmsDecrypter) {
		if name != "" {
			d.encryptionContext[lambdaFunctionNameKey] = name
		}
	}
}

type kmsDecrypter struct {
	client            KMSClient
	encryptionContext map[string]string
}

// KMS returns a Decrypter for base64-encoded KMS ciphertext blobs.
func KMS(client KMSClient, opts ...KMSOption) credentials.Decrypter {
	d := &kmsDecrypter{
		client:            client,
		encryptionContext: make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}

	return func(ctx context.Context, ciphertext string) (string, error) {
		blob, err := base64.StdEncoding.DecodeString(ciphertext)
		if err != nil {
			return "", fmt.Errorf("KMS ciphertext is not base64: %w", err)
		}
		var ec map[string]string
		if len(d.encryptionContext) > 0 {
			ec = d.encryptionContext
		}
		plain, err := d.client.Decrypt(ctx, blob, ec)
		if err != nil {
			return "", fmt.Errorf("KMS Decrypt: %w", err)
		}
		return string(plain), nil
	}
}
