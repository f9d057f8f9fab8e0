package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/99designs/keyring"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	appconfig "doc-manager-app/internal/config"
	apperrors "doc-manager-app/pkg/errors"
)

const (
	AccessKeyItem = "s3-access-key"
	SecretKeyItem = "s3-secret-key"
	DefaultRegion = "us-east-1"

	validateTimeout = 10 * time.Second
)

// Credential sources, reported in aws.Credentials.Source
const (
	SourceConfig  = "doc-manager-config"
	SourceKeyring = "doc-manager-keyring"
)

// CredentialProvider defines how diagnostics obtain storage credentials
type CredentialProvider interface {
	GetCredentials(ctx context.Context) (aws.Credentials, error)
	StoreCredentials(accessKey, secretKey string) error
	ClearCredentials() error
}

// Identity is the caller reported by STS
type Identity struct {
	Account string `json:"account"`
	ARN     string `json:"arn"`
	UserID  string `json:"user_id"`
}

// SecureCredentialProvider resolves storage keys from configuration, then
// the OS keychain, then the default AWS credential chain
type SecureCredentialProvider struct {
	keyring keyring.Keyring
	storage appconfig.StorageConfig
}

// NewSecureCredentialProvider opens the platform keyring for service
func NewSecureCredentialProvider(service string, storage appconfig.StorageConfig) (*SecureCredentialProvider, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.KWalletBackend,
		},
	})
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigurationError, "failed to open keyring", err)
	}
	return NewCredentialProvider(ring, storage), nil
}

// NewCredentialProvider wraps an already opened keyring
func NewCredentialProvider(ring keyring.Keyring, storage appconfig.StorageConfig) *SecureCredentialProvider {
	return &SecureCredentialProvider{keyring: ring, storage: storage}
}

// StoreCredentials stores storage keys in the OS keychain
func (p *SecureCredentialProvider) StoreCredentials(accessKey, secretKey string) error {
	if accessKey == "" || secretKey == "" {
		return apperrors.NewValidationError(apperrors.ErrInvalidInput, "access key and secret key cannot be empty")
	}

	if err := p.keyring.Set(keyring.Item{Key: AccessKeyItem, Data: []byte(accessKey)}); err != nil {
		return fmt.Errorf("failed to store access key: %w", err)
	}
	if err := p.keyring.Set(keyring.Item{Key: SecretKeyItem, Data: []byte(secretKey)}); err != nil {
		return fmt.Errorf("failed to store secret key: %w", err)
	}
	return nil
}

// GetCredentials retrieves storage credentials
func (p *SecureCredentialProvider) GetCredentials(ctx context.Context) (aws.Credentials, error) {
	if p.storage.AccessKey != "" && p.storage.SecretKey != "" {
		return aws.Credentials{
			AccessKeyID:     p.storage.AccessKey,
			SecretAccessKey: p.storage.SecretKey,
			Source:          SourceConfig,
		}, nil
	}

	accessKeyItem, err := p.keyring.Get(AccessKeyItem)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return p.getCredentialsFromChain(ctx)
	}
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("failed to retrieve access key from keychain: %w", err)
	}

	secretKeyItem, err := p.keyring.Get(SecretKeyItem)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("failed to retrieve secret key from keychain: %w", err)
	}

	return aws.Credentials{
		AccessKeyID:     string(accessKeyItem.Data),
		SecretAccessKey: string(secretKeyItem.Data),
		Source:          SourceKeyring,
	}, nil
}

// getCredentialsFromChain attempts to get credentials using AWS credential chain
func (p *SecureCredentialProvider) getCredentialsFromChain(ctx context.Context) (aws.Credentials, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(p.region()))
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, apperrors.NewAppError(apperrors.ErrInvalidCredentials,
			"no storage credentials in config, keychain or AWS credential chain", err)
	}
	return creds, nil
}

// ValidateCredentials asks STS who the credentials belong to. A configured
// endpoint receives the call instead of AWS.
func (p *SecureCredentialProvider) ValidateCredentials(ctx context.Context) (*Identity, error) {
	creds, err := p.GetCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	cfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		Region:      p.region(),
	}
	client := sts.NewFromConfig(cfg, func(o *sts.Options) {
		if p.storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(p.storage.Endpoint)
		}
	})

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		appErr := apperrors.ClassifyError(err)
		code := appErr.Code
		if code == apperrors.ErrUnknownError || code == apperrors.ErrS3AccessDenied {
			code = apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.WrapError(err, code, "credential validation failed")
	}

	return &Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}

// ClearCredentials removes stored keys from the keychain
func (p *SecureCredentialProvider) ClearCredentials() error {
	for _, key := range []string{AccessKeyItem, SecretKeyItem} {
		if err := p.keyring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("failed to remove %s: %w", key, err)
		}
	}
	return nil
}

func (p *SecureCredentialProvider) region() string {
	if p.storage.Region != "" {
		return p.storage.Region
	}
	return DefaultRegion
}

// GetSetupGuidance explains how to give the diagnostics access to the store
func GetSetupGuidance() string {
	return `Object storage credentials:

1. Configuration (takes precedence):
   S3_ENDPOINT=http://localhost:9000   (leave empty for AWS)
   S3_REGION=us-east-1
   S3_BUCKET=documents
   S3_ACCESS_KEY / S3_SECRET_KEY
   S3_USE_PATH_STYLE=true              (required for MinIO)

2. OS keychain:
   storagecheck login --access-key ... --secret-key ...
   stores the keys; storagecheck logout removes them.

3. AWS credential chain:
   environment variables, shared config files or an instance role.

The keys need s3:ListBucket, s3:GetObject, s3:PutObject and
s3:DeleteObject on the bucket. probe writes below ` + ProbePrefix + ` and
removes what it writes.`
}
