// Package archive keeps a copy of every submitted session snapshot in S3.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config configures an S3 archiver.
type Config struct {
	Bucket string
	Prefix string
	// KMSKeyID forces a customer managed key; the bucket default applies
	// when empty.
	KMSKeyID string
	// EndpointURL points at an S3-compatible endpoint such as LocalStack
	// or MinIO, and switches to path-style addressing.
	EndpointURL string
}

// Putter is the subset of the S3 client used by S3.
type Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 is the core.Archiver that writes snapshots to a bucket.
type S3 struct {
	client Putter
	cfg    Config
	now    func() time.Time
}

// New loads the default AWS configuration and creates an S3 archiver.
func New(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg), nil
}

// NewWithClient creates an archiver around an existing client.
func NewWithClient(client Putter, cfg Config) *S3 {
	return &S3{client: client, cfg: cfg, now: time.Now}
}

// ArchiveSnapshot stores snapshot under BuildKey(prefix, sessionID, now).
func (a *S3) ArchiveSnapshot(ctx context.Context, sessionID string, snapshot []byte) error {
	key := BuildKey(a.cfg.Prefix, sessionID, a.now())

	input := &s3.PutObjectInput{
		Bucket:               aws.String(a.cfg.Bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(snapshot),
		ContentLength:        aws.Int64(int64(len(snapshot))),
		ContentType:          aws.String("application/json"),
		Metadata:             map[string]string{"session-id": sessionID},
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	}
	if a.cfg.KMSKeyID != "" {
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(a.cfg.KMSKeyID)
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.cfg.Bucket, key, err)
	}
	return nil
}
