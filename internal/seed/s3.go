package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// openS3 opens a corpus object at "s3://bucket/key". Region and endpoint
// override the ambient AWS configuration when non-empty.
func openS3(ctx context.Context, uri, region, endpoint string) (io.ReadCloser, error) {
	bucket, key, err := splitObjectURI(uri, "s3://")
	if err != nil {
		return nil, err
	}

	var cfgOpts []func(*config.LoadOptions) error
	if region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("corpus %s: %w", uri, os.ErrNotExist)
		}
		return nil, fmt.Errorf("opening %s: %w", uri, err)
	}
	return out.Body, nil
}
