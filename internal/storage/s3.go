// Package storage provides the remote object store primitives used by the sync engine:
// paginated listing under a prefix, single-object download and single-object upload
// against an S3-compatible service.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"
)

// ErrNoRemoteContent is returned when a listing under a prefix yields no objects at all.
var ErrNoRemoteContent = errors.New("no remote content found")

// Object describes one remote object returned by a listing.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
	IsDirMarker  bool // Zero-byte placeholder standing in for a directory
}

// API defines the S3 operations the storage layer needs.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3 implements listing and transfer primitives on top of an S3 client.
type S3 struct {
	client API
}

// NewS3 wraps an S3 API client.
func NewS3(client API) *S3 {
	return &S3{client: client}
}

// isDirMarker reports whether an S3 object is a directory placeholder.
// This is a convention of S3 consoles and tools, not a property of the store.
func isDirMarker(key string, size int64) bool {
	return size == 0 && strings.HasSuffix(key, "/")
}

// Objects lists every object under bucket/prefix, following pagination.
// If the listing is empty the sequence yields ErrNoRemoteContent once.
// Iteration stops after the first error.
func (c *S3) Objects(ctx context.Context, bucket, prefix string) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucket),
			Prefix: aws.String(prefix),
		})

		found := 0
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(Object{}, fmt.Errorf("listing %s: %w", FormatURL(bucket, prefix), describeError(err)))
				return
			}

			for _, obj := range page.Contents {
				if obj.Key == nil {
					continue
				}
				o := Object{
					Key:          *obj.Key,
					Size:         aws.ToInt64(obj.Size),
					LastModified: aws.ToTime(obj.LastModified),
				}
				o.IsDirMarker = isDirMarker(o.Key, o.Size)
				found++
				if !yield(o, nil) {
					return
				}
			}
		}

		if found == 0 {
			yield(Object{}, fmt.Errorf("%w at %s", ErrNoRemoteContent, FormatURL(bucket, prefix)))
		}
	}
}

// Download streams one object into w and returns the number of bytes written.
func (c *S3) Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("get object %s: %w", key, describeError(err))
	}
	defer func() { _ = out.Body.Close() }()

	n, err := io.Copy(w, out.Body)
	if err != nil {
		return n, fmt.Errorf("reading object %s: %w", key, err)
	}

	return n, nil
}

// Upload writes r to bucket/key in a single PutObject request.
// A negative size leaves the content length to the SDK. When r can seek, its
// content type is sniffed from the leading bytes and sent with the object.
func (c *S3) Upload(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	contentType, err := detectContentType(r)
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", key, describeError(err))
	}

	return nil
}

// detectContentType sniffs the media type of a seekable body and rewinds it
// to where it was. Other readers are sent without a content type.
func detectContentType(r io.Reader) (string, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return "", nil
	}

	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", nil
	}
	mt, detectErr := mimetype.DetectReader(rs)
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding body: %w", err)
	}
	if detectErr != nil {
		return "", nil
	}
	return mt.String(), nil
}

// CheckBucket verifies that bucket exists and is reachable with the current credentials.
func (c *S3) CheckBucket(ctx context.Context, bucket string) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", bucket, describeError(err))
	}
	return nil
}

// describeError adds a hint for common S3 API failures while keeping the
// original error in the chain.
func describeError(err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("object does not exist: %w", err)
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("bucket does not exist: %w", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("access denied, check auth settings: %w", err)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("credentials rejected: %w", err)
		case "NotFound", "NoSuchBucket":
			return fmt.Errorf("bucket does not exist: %w", err)
		}
	}

	return err
}
