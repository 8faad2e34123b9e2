package config

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/neurender/neurender/internal/types"
)

const s3MaxAttempts = 3

// NewS3Client creates the S3 client shared by every transfer worker.
//
// Credentials come from the auth section: static keys win over a profile,
// and with neither the SDK's default chain is used. The HTTP transport keeps
// at most one connection per transfer worker to the storage host.
func NewS3Client(ctx context.Context, cfg *types.Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	s3cfg := cfg.Storage.S3
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
		}
		o.UsePathStyle = s3cfg.ForcePathStyle
	}), nil
}

func loadOptions(cfg *types.Config) []func(*config.LoadOptions) error {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
		config.WithRetryMaxAttempts(s3MaxAttempts),
		config.WithRetryMode(aws.RetryModeStandard),
		config.WithHTTPClient(newHTTPClient(cfg.Storage.S3.WorkerCount)),
	}

	switch auth := cfg.Auth; {
	case auth.AccessKeyID != "":
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(auth.AccessKeyID, auth.SecretAccessKey, auth.SessionToken),
		))
	case auth.Profile != "":
		opts = append(opts, config.WithSharedConfigProfile(auth.Profile))
	}

	return opts
}

// newHTTPClient sizes the connection pool to the number of transfer workers.
func newHTTPClient(workers int) *awshttp.BuildableClient {
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	return awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
		tr.MaxConnsPerHost = workers
		tr.MaxIdleConnsPerHost = workers
	})
}
