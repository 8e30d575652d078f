// Package s3 provides an S3-backed BlockStore so multiple graph instances
// can share one content-addressed block pool.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/endomorphosis/kgraph/internal/util"
	"github.com/endomorphosis/kgraph/pkg/codec"
	"github.com/endomorphosis/kgraph/pkg/common"
)

// NewClient builds an S3 client from the AWS_* environment, matching the
// path-style MinIO-compatible setup used across deployments.
func NewClient(ctx context.Context) (*awss3.Client, error) {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

// BlockStore stores blocks as objects keyed by content address under a
// common prefix. Writes skip objects that already exist, so repeated stores
// of identical bytes touch S3 once.
type BlockStore struct {
	client     *awss3.Client
	bucket     string
	prefix     string
	maxRetries int
}

type Params struct {
	Client *awss3.Client
	Bucket string
	// Prefix defaults to "blocks/".
	Prefix string
	// MaxRetries bounds transient retrieval retries. Defaults to 3.
	MaxRetries int
}

func NewBlockStore(params Params) (*BlockStore, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("%w: s3 client is required", common.ErrInvalidArgument)
	}
	if params.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", common.ErrInvalidArgument)
	}
	prefix := params.Prefix
	if prefix == "" {
		prefix = "blocks/"
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &BlockStore{
		client:     params.Client,
		bucket:     params.Bucket,
		prefix:     prefix,
		maxRetries: maxRetries,
	}, nil
}

// Store persists data under its content address. Idempotent: an existing
// object with the same address is left untouched.
func (s *BlockStore) Store(ctx context.Context, data []byte) (string, error) {
	address := codec.Address(data)
	key := s.prefix + address

	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return address, nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return "", fmt.Errorf("failed to check block %s in S3: %w", address, err)
	}

	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store block %s in S3: %w", address, err)
	}

	return address, nil
}

// Retrieve returns the block stored under address, retrying transient
// failures before giving up.
func (s *BlockStore) Retrieve(ctx context.Context, address string) ([]byte, error) {
	key := s.prefix + address

	data, err := util.Retry(s.maxRetries, func() ([]byte, error) {
		result, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		defer result.Body.Close()
		return io.ReadAll(result.Body)
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: block %s", common.ErrNotFound, address)
		}
		return nil, fmt.Errorf("failed to retrieve block %s from S3: %w", address, err)
	}
	return data, nil
}
