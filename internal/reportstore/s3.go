// Package reportstore archives triage reports to S3-compatible storage.
package reportstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/agentllm/agentllm/internal/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	newObjectID = func() string { return uuid.NewString() }
)

var ErrMissingBucket = errors.New("report bucket is not configured")

// DefaultTimeout bounds one Put, retries included.
const DefaultTimeout = 30 * time.Second

// Config selects the bucket. Region and credentials fall back to the AWS
// default chain when empty; Endpoint targets MinIO and other S3 clones.
// A zero Timeout means DefaultTimeout.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
	Timeout   time.Duration
}

// Archive uploads reports as JSON objects.
type Archive struct {
	cfg    Config
	client *s3.Client
	now    func() time.Time
	log    logging.Logger
}

func New(ctx context.Context, cfg Config, log logging.Logger) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "triage"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logging.Nop()
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Archive{cfg: cfg, client: client, now: time.Now, log: log}, nil
}

// Key returns prefix/YYYY/MM/DD/<uuid>.json for t in UTC.
func (a *Archive) Key(t time.Time) string {
	return path.Join(a.cfg.Prefix, t.UTC().Format("2006/01/02"), newObjectID()+".json")
}

// Put marshals report and uploads it, returning the object key.
func (a *Archive) Put(ctx context.Context, report any) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	key := a.Key(a.now())

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	_, err = putObject(a.client, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", a.cfg.Bucket, key, err)
	}
	a.log.Info(ctx, "report archived", "bucket", a.cfg.Bucket, "key", key, "size", len(body))
	return key, nil
}
