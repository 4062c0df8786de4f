package awsprovider

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/catso"
	"github.com/wolfeidau/catso/credentials"
)

type mockKMSClient struct {
	plaintexts map[string]string
	gotContext map[string]string
}

func (m *mockKMSClient) Decrypt(_ context.Context, ciphertext []byte, ec map[string]string) ([]byte, error) {
	m.gotContext = ec
	if val, ok := m.plaintexts[string(ciphertext)]; ok {
		return []byte(val), nil
	}
	return nil, fmt.Errorf("InvalidCiphertextException")
}

type mockSSMClient struct {
	params map[string]string
}

func (m *mockSSMClient) GetParameter(_ context.Context, name string) (string, error) {
	if val, ok := m.params[name]; ok {
		return val, nil
	}
	return "", fmt.Errorf("parameter not found: %s", name)
}

type mockSMClient struct {
	secrets map[string]string
}

func (m *mockSMClient) GetSecretValue(_ context.Context, secretID string) (string, error) {
	if val, ok := m.secrets[secretID]; ok {
		return val, nil
	}
	return "", fmt.Errorf("secret not found: %s", secretID)
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestKMS(t *testing.T) {
	client := &mockKMSClient{plaintexts: map[string]string{"blob": "client-secret"}}

	decrypt := KMS(client, WithLambdaFunctionName("catso-skill"))
	val, err := decrypt(context.Background(), encode("blob"))
	require.NoError(t, err)
	require.Equal(t, "client-secret", val)
	require.Equal(t, map[string]string{"LambdaFunctionName": "catso-skill"}, client.gotContext)
}

func TestKMS_NoEncryptionContext(t *testing.T) {
	client := &mockKMSClient{plaintexts: map[string]string{"blob": "v"}}

	_, err := KMS(client, WithLambdaFunctionName(""))(context.Background(), encode("blob"))
	require.NoError(t, err)
	require.Nil(t, client.gotContext)
}

func TestKMS_InvalidBase64(t *testing.T) {
	_, err := KMS(&mockKMSClient{})(context.Background(), "%%%")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not base64")
}

func TestKMS_DecryptError(t *testing.T) {
	_, err := KMS(&mockKMSClient{}, WithEncryptionContext("app", "catso"))(context.Background(), encode("unknown"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "KMS Decrypt")
}

func TestKMS_WithStore(t *testing.T) {
	client := &mockKMSClient{plaintexts: map[string]string{"id": "plain-id"}}
	s := credentials.NewStore(KMS(client))

	err := s.Load(context.Background(), map[string]string{
		credentials.RedditClientID:     encode("id"),
		credentials.RedditClientSecret: encode("missing"),
	})
	require.ErrorIs(t, err, catso.ErrSecretsUnavailable)

	v, ok := s.Get(credentials.RedditClientID)
	require.True(t, ok)
	require.Equal(t, "plain-id", v)
}

func TestSSM(t *testing.T) {
	client := &mockSSMClient{params: map[string]string{"/prod/reddit-secret": "ssm-secret"}}

	val, err := SSM(client)(context.Background(), "/prod/reddit-secret")
	require.NoError(t, err)
	require.Equal(t, "ssm-secret", val)
}

func TestSSM_NotFound(t *testing.T) {
	_, err := SSM(&mockSSMClient{})(context.Background(), "/missing/param")
	require.Error(t, err)
	require.Contains(t, err.Error(), "SSM GetParameter")
}

func TestSecretsManager(t *testing.T) {
	client := &mockSMClient{secrets: map[string]string{"prod/reddit": "sm-secret"}}

	val, err := SecretsManager(client)(context.Background(), "prod/reddit")
	require.NoError(t, err)
	require.Equal(t, "sm-secret", val)
}

func TestSecretsManager_NotFound(t *testing.T) {
	_, err := SecretsManager(&mockSMClient{})(context.Background(), "missing/secret")
	require.Error(t, err)
	require.Contains(t, err.Error(), "SecretsManager GetSecretValue")
}

type fakeKMSAPI struct {
	in *kms.DecryptInput
}

func (f *fakeKMSAPI) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.in = in
	return &kms.DecryptOutput{Plaintext: []byte("decrypted")}, nil
}

type fakeSSMAPI struct {
	in *ssm.GetParameterInput
}

func (f *fakeSSMAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.in = in
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String("param-value")}}, nil
}

type fakeSMAPI struct{}

func (fakeSMAPI) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return &secretsmanager.GetSecretValueOutput{}, nil
}

func TestSDKAdapters(t *testing.T) {
	ctx := context.Background()

	kapi := &fakeKMSAPI{}
	plain, err := NewKMSClient(kapi).Decrypt(ctx, []byte("blob"), map[string]string{"k": "v"})
	require.NoError(t, err)
	require.Equal(t, "decrypted", string(plain))
	require.Equal(t, []byte("blob"), kapi.in.CiphertextBlob)
	require.Equal(t, map[string]string{"k": "v"}, kapi.in.EncryptionContext)

	sapi := &fakeSSMAPI{}
	val, err := NewSSMClient(sapi).GetParameter(ctx, "/p")
	require.NoError(t, err)
	require.Equal(t, "param-value", val)
	require.True(t, aws.ToBool(sapi.in.WithDecryption))

	_, err = NewSecretsManagerClient(fakeSMAPI{}).GetSecretValue(ctx, "binary-only")
	require.Error(t, err)
}
