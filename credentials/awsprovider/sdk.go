package awsprovider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// KMSAPI is the subset of *kms.Client used here.
type KMSAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// SSMAPI is the subset of *ssm.Client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SecretsManagerAPI is the subset of *secretsmanager.Client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewKMSClient adapts an SDK KMS client to KMSClient.
func NewKMSClient(api KMSAPI) KMSClient {
	return kmsClient{api: api}
}

// NewSSMClient adapts an SDK SSM client to SSMClient.
func NewSSMClient(api SSMAPI) SSMClient {
	return ssmClient{api: api}
}

// NewSecretsManagerClient adapts an SDK Secrets Manager client to SecretsManagerClient.
func NewSecretsManagerClient(api SecretsManagerAPI) SecretsManagerClient {
	return secretsManagerClient{api: api}
}

// FromConfig builds the SDK-backed clients from a loaded AWS config.
func FromConfig(cfg aws.Config) (KMSClient, SSMClient, SecretsManagerClient) {
	return NewKMSClient(kms.NewFromConfig(cfg)),
		NewSSMClient(ssm.NewFromConfig(cfg)),
		NewSecretsManagerClient(secretsmanager.NewFromConfig(cfg))
}

type kmsClient struct{ api KMSAPI }

func (c kmsClient) Decrypt(ctx context.Context, ciphertext []byte, encryptionContext map[string]string) ([]byte, error) {
	out, err := c.api.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    ciphertext,
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return nil, err
	}
	return out.Plaintext, nil
}

type ssmClient struct{ api SSMAPI }

func (c ssmClient) GetParameter(ctx context.Context, name string) (string, error) {
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %q has no value", name)
	}
	return aws.ToString(out.Parameter.Value), nil
}

type secretsManagerClient struct{ api SecretsManagerAPI }

func (c secretsManagerClient) GetSecretValue(ctx context.Context, secretID string) (string, error) {
	out, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", err
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value", secretID)
	}
	return aws.ToString(out.SecretString), nil
}
