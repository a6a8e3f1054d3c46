// Package s3 provides an S3-backed contract document backend. Each contract
// is one JSON object; compare-and-set uses conditional PutObject.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	"github.com/gezibash/arc-contract/internal/storage"
)

const (
	KeyBucket          = "bucket"
	KeyRegion          = "region"
	KeyEndpoint        = "endpoint"
	KeyPrefix          = "prefix"
	KeyAccessKeyID     = "access_key_id"
	KeySecretAccessKey = "secret_access_key"
	KeyForcePathStyle  = "force_path_style"
)

const objectSuffix = ".json"

func init() {
	physical.Register("s3", NewFactory, Defaults)
}

// Defaults returns the default configuration for the S3 backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyRegion:          "us-east-1",
		KeyEndpoint:        "",
		KeyPrefix:          "contracts/",
		KeyAccessKeyID:     "",
		KeySecretAccessKey: "",
		KeyForcePathStyle:  "false",
	}
}

// NewFactory creates an S3 backend and verifies bucket access.
func NewFactory(ctx context.Context, config storage.Config) (physical.Backend, error) {
	bucket, err := config.Require("s3", KeyBucket)
	if err != nil {
		return nil, err
	}
	region := config.String(KeyRegion, "us-east-1")
	endpoint := config.String(KeyEndpoint, "")
	prefix := config.String(KeyPrefix, "contracts/")
	accessKeyID := config.String(KeyAccessKeyID, "")
	secretAccessKey := config.String(KeySecretAccessKey, "")

	forcePathStyle, err := config.Bool(KeyForcePathStyle, false)
	if err != nil {
		return nil, storage.Field("s3", err)
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, storage.NewConfigError("s3", "", "failed to load AWS config").WithCause(err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = forcePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, storage.NewConfigError("s3", KeyBucket, "bucket not accessible").WithCause(err).WithValue(bucket)
	}

	slog.Info("s3 contractstore initialized", "bucket", bucket, "region", region, "prefix", prefix)
	return NewWithClient(client, bucket, prefix), nil
}

// Backend is an S3 implementation of physical.Backend.
type Backend struct {
	client *s3.Client
	bucket string
	prefix string
	closed atomic.Bool
}

// NewWithClient wraps an existing client.
func NewWithClient(client *s3.Client, bucket, prefix string) *Backend {
	return &Backend{client: client, bucket: bucket, prefix: prefix}
}

func (b *Backend) key(id string) string {
	return b.prefix + id + objectSuffix
}

// load returns the stored document and its ETag.
func (b *Backend) load(ctx context.Context, key string) (*physical.Document, string, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", physical.ErrNotFound
		}
		return nil, "", err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	var doc physical.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", key, err)
	}
	return &doc, aws.ToString(out.ETag), nil
}

// Get returns the document stored under id.
func (b *Backend) Get(ctx context.Context, id string) (*physical.Document, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}
	doc, _, err := b.load(ctx, b.key(id))
	if err != nil && !errors.Is(err, physical.ErrNotFound) {
		return nil, fmt.Errorf("s3 get: %w", err)
	}
	return doc, err
}

// Put writes doc if the stored version equals expectedVersion. Creation
// uses If-None-Match and updates use If-Match on the ETag read alongside
// the version.
func (b *Backend) Put(ctx context.Context, doc *physical.Document, expectedVersion int64) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	key := b.key(doc.ID)
	in := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		ContentType: aws.String("application/json"),
	}

	if expectedVersion == 0 {
		in.IfNoneMatch = aws.String("*")
	} else {
		cur, etag, err := b.load(ctx, key)
		switch {
		case errors.Is(err, physical.ErrNotFound):
			return physical.ErrVersionConflict
		case err != nil:
			return fmt.Errorf("s3 put: %w", err)
		case cur.Version != expectedVersion:
			return physical.ErrVersionConflict
		}
		in.IfMatch = aws.String(etag)
	}

	next := doc.Clone()
	next.Version = expectedVersion + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("s3 put: encode: %w", err)
	}
	in.Body = bytes.NewReader(data)

	if _, err := b.client.PutObject(ctx, in); err != nil {
		if isPreconditionFailed(err) {
			return physical.ErrVersionConflict
		}
		return fmt.Errorf("s3 put: %w", err)
	}
	doc.Version = next.Version
	return nil
}

// Delete removes the document stored under id.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	key := b.key(id)
	if _, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isNotFound(err) {
			return physical.ErrNotFound
		}
		return fmt.Errorf("s3 delete: %w", err)
	}

	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}
	return nil
}

func (b *Backend) listKeys(ctx context.Context) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if k := aws.ToString(obj.Key); strings.HasSuffix(k, objectSuffix) {
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}

// Find lists every object under the prefix and filters the decoded documents.
func (b *Backend) Find(ctx context.Context, f *physical.Filter) ([]*physical.Document, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	keys, err := b.listKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 find: %w", err)
	}

	var out []*physical.Document
	for _, k := range keys {
		doc, _, err := b.load(ctx, k)
		if errors.Is(err, physical.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("s3 find: %w", err)
		}
		if physical.Matches(doc, f) {
			out = append(out, doc)
		}
	}
	physical.SortByID(out)
	return physical.Limit(out, f), nil
}

// Stats counts stored contracts by listing the prefix.
func (b *Backend) Stats(ctx context.Context) (*physical.Stats, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}
	keys, err := b.listKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 stats: %w", err)
	}
	return &physical.Stats{Documents: int64(len(keys)), BackendType: "s3"}, nil
}

// Close marks the backend closed; the SDK client needs no cleanup.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}

func statusCode(err error) int {
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	return statusCode(err) == http.StatusNotFound
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	switch statusCode(err) {
	case http.StatusPreconditionFailed, http.StatusConflict:
		return true
	}
	return false
}
