package aws

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "doc-manager-app/internal/config"
	apperrors "doc-manager-app/pkg/errors"
	"doc-manager-app/pkg/logger"
)

const (
	// ProbePrefix holds the objects written by Probe
	ProbePrefix = "storagecheck/"

	// MaxPresignExpiry is the longest lifetime SigV4 allows
	MaxPresignExpiry = 7 * 24 * time.Hour

	defaultProbeSize = 64 << 10
)

// UploadProgress represents the progress of a probe upload
type UploadProgress struct {
	BytesUploaded int64   `json:"bytes_uploaded"`
	TotalBytes    int64   `json:"total_bytes"`
	Percentage    float64 `json:"percentage"`
}

// ObjectInfo is the metadata reported for one stored object
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
}

// ConnectionReport summarises a reachability check
type ConnectionReport struct {
	Endpoint  string        `json:"endpoint"`
	Bucket    string        `json:"bucket"`
	Region    string        `json:"region"`
	HasObject bool          `json:"has_objects"`
	Latency   time.Duration `json:"latency"`
}

// ProbeResult describes a write/read/delete round trip
type ProbeResult struct {
	Key      string        `json:"key"`
	Bytes    int64         `json:"bytes"`
	Upload   time.Duration `json:"upload"`
	Total    time.Duration `json:"total"`
	Verified bool          `json:"verified"`
	Cleaned  bool          `json:"cleaned"`
}

// S3Service checks the object store that backs the document service
type S3Service interface {
	// TestConnection lists at most one key to prove the bucket is reachable
	TestConnection(ctx context.Context) (*ConnectionReport, error)

	// ListObjects returns up to limit objects below prefix
	ListObjects(ctx context.Context, prefix string, limit int32) ([]ObjectInfo, error)

	// HeadObject retrieves metadata about an object without downloading it
	HeadObject(ctx context.Context, key string) (*ObjectInfo, error)

	// Probe uploads a random object, verifies it and deletes it again
	Probe(ctx context.Context, size int64, progressCh chan<- UploadProgress) (*ProbeResult, error)

	// GeneratePresignedURL generates a presigned URL for downloading a file
	GeneratePresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)

	// DeleteObject deletes an object from the bucket
	DeleteObject(ctx context.Context, key string) error
}

// S3ServiceImpl implements S3Service using AWS SDK v2. It works against AWS
// and any S3-compatible endpoint such as MinIO.
type S3ServiceImpl struct {
	client    *s3.Client
	presigner *s3.PresignClient
	uploader  *manager.Uploader
	bucket    string
	region    string
	endpoint  string
	logger    *logger.Logger
}

// NewS3Service creates a new S3Service for the configured bucket
func NewS3Service(ctx context.Context, cfg appconfig.StorageConfig, credProvider CredentialProvider, log *logger.Logger) (*S3ServiceImpl, error) {
	if cfg.Bucket == "" {
		return nil, apperrors.NewValidationError(apperrors.ErrInvalidConfig, "bucket name cannot be empty")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if log == nil {
		log = logger.NewWithComponent("s3")
	}

	creds, err := credProvider.GetCredentials(ctx)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidCredentials, "failed to get storage credentials", err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)),
		config.WithRetryMode(aws.RetryModeStandard),
		config.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigurationError, "failed to load storage config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		// MinIO releases before 2025 reject the default trailing checksums
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = manager.MinUploadPartSize
		u.Concurrency = 1
	})

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "aws"
	}

	return &S3ServiceImpl{
		client:    client,
		presigner: s3.NewPresignClient(client),
		uploader:  uploader,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		endpoint:  endpoint,
		logger:    log,
	}, nil
}

// Bucket returns the bucket under test
func (s *S3ServiceImpl) Bucket() string {
	return s.bucket
}

// TestConnection tests the connection by listing at most one key
func (s *S3ServiceImpl) TestConnection(ctx context.Context) (*ConnectionReport, error) {
	start := time.Now()
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, s.handleS3Error("test connection", err)
	}

	report := &ConnectionReport{
		Endpoint:  s.endpoint,
		Bucket:    s.bucket,
		Region:    s.region,
		HasObject: len(out.Contents) > 0,
		Latency:   time.Since(start),
	}
	s.logger.InfoWithFields("Storage reachable", map[string]interface{}{
		"bucket":     s.bucket,
		"latency_ms": report.Latency.Milliseconds(),
	})
	return report, nil
}

// ListObjects returns up to limit objects below prefix, following
// continuation tokens as needed
func (s *S3ServiceImpl) ListObjects(ctx context.Context, prefix string, limit int32) ([]ObjectInfo, error) {
	if limit <= 0 {
		limit = 100
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(limit),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() && int32(len(objects)) < limit {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.handleS3Error("list objects", err)
		}
		for _, obj := range page.Contents {
			if int32(len(objects)) == limit {
				break
			}
			objects = append(objects, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
			})
		}
	}
	return objects, nil
}

// HeadObject retrieves metadata about an object without downloading it
func (s *S3ServiceImpl) HeadObject(ctx context.Context, key string) (*ObjectInfo, error) {
	if key == "" {
		return nil, apperrors.NewValidationError(apperrors.ErrInvalidInput, "object key cannot be empty")
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.handleS3Error("get object metadata", err)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

// Probe writes size random bytes under ProbePrefix, checks the stored size
// and removes the object. The object is removed even when verification fails.
func (s *S3ServiceImpl) Probe(ctx context.Context, size int64, progressCh chan<- UploadProgress) (*ProbeResult, error) {
	if size <= 0 {
		size = defaultProbeSize
	}
	if size > appconfig.MaxUploadSize {
		return nil, apperrors.NewValidationError(apperrors.ErrFileTooBig, fmt.Sprintf("probe size %d exceeds %d bytes", size, appconfig.MaxUploadSize))
	}

	payload := make([]byte, size)
	if _, err := rand.Read(payload); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrInternalError, "failed to generate probe payload", err)
	}

	key := ProbePrefix + uuid.NewString()
	result := &ProbeResult{Key: key, Bytes: size}
	start := time.Now()

	var body io.Reader = bytes.NewReader(payload)
	if progressCh != nil {
		body = &progressReader{reader: body, totalBytes: size, progressCh: progressCh}
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"upload-timestamp": time.Now().UTC().Format(time.RFC3339),
			"purpose":          "storagecheck",
		},
	})
	if err != nil {
		return nil, s.handleS3Error("upload probe", err)
	}
	result.Upload = time.Since(start)

	if progressCh != nil {
		select {
		case progressCh <- UploadProgress{BytesUploaded: size, TotalBytes: size, Percentage: 100}:
		case <-ctx.Done():
		}
	}

	info, headErr := s.HeadObject(ctx, key)
	if headErr == nil {
		result.Verified = info.Size == size
	}

	if err := s.DeleteObject(ctx, key); err != nil {
		s.logger.WarnWithError("Probe object left behind: "+key, err)
	} else {
		result.Cleaned = true
	}
	result.Total = time.Since(start)

	if headErr != nil {
		return result, headErr
	}
	if !result.Verified {
		return result, apperrors.NewAppError(apperrors.ErrUploadFailed,
			fmt.Sprintf("stored probe is %d bytes, expected %d", info.Size, size), nil)
	}

	s.logger.InfoWithFields("Probe completed", map[string]interface{}{
		"bytes":     size,
		"upload_ms": result.Upload.Milliseconds(),
		"total_ms":  result.Total.Milliseconds(),
	})
	return result, nil
}

// GeneratePresignedURL generates a presigned URL for downloading a file.
// Expirations above MaxPresignExpiry are capped.
func (s *S3ServiceImpl) GeneratePresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	if key == "" {
		return "", apperrors.NewValidationError(apperrors.ErrInvalidInput, "object key cannot be empty")
	}
	if expiration <= 0 {
		return "", apperrors.NewValidationError(apperrors.ErrInvalidInput, "expiration duration must be positive")
	}
	if expiration > MaxPresignExpiry {
		expiration = MaxPresignExpiry
	}

	request, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", s.handleS3Error("generate presigned URL", err)
	}

	return request.URL, nil
}

// DeleteObject deletes an object from the bucket
func (s *S3ServiceImpl) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return apperrors.NewValidationError(apperrors.ErrInvalidInput, "object key cannot be empty")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.handleS3Error("delete object", err)
	}
	return nil
}

// handleS3Error classifies an SDK error and names the failed operation
func (s *S3ServiceImpl) handleS3Error(operation string, err error) error {
	if err == nil {
		return nil
	}

	appErr := apperrors.ClassifyError(err)
	var msg string
	switch appErr.Code {
	case apperrors.ErrS3AccessDenied:
		msg = fmt.Sprintf("access denied to bucket %q while trying to %s", s.bucket, operation)
	case apperrors.ErrS3BucketNotFound:
		msg = fmt.Sprintf("bucket %q does not exist", s.bucket)
	case apperrors.ErrConnectionTimeout:
		msg = fmt.Sprintf("operation timed out while trying to %s", operation)
	default:
		msg = fmt.Sprintf("failed to %s", operation)
	}

	s.logger.ErrorWithOperation(operation, msg, err)
	return apperrors.WrapError(err, appErr.Code, msg)
}

// progressReader wraps an io.Reader to provide upload progress updates
type progressReader struct {
	reader     io.Reader
	totalBytes int64
	bytesRead  int64
	progressCh chan<- UploadProgress
}

// Read implements io.Reader and sends progress updates without blocking
func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.bytesRead += int64(n)
		select {
		case pr.progressCh <- UploadProgress{
			BytesUploaded: pr.bytesRead,
			TotalBytes:    pr.totalBytes,
			Percentage:    float64(pr.bytesRead) / float64(pr.totalBytes) * 100.0,
		}:
		default:
		}
	}
	return n, err
}
