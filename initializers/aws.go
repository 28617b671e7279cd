package initializers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// InitAWS returns an S3 client for bundle imports, or nil when no bucket is
// configured.
func InitAWS(ctx context.Context, cfg AppConfig) (*s3.Client, error) {
	if cfg.AWSBucketName == "" {
		return nil, nil
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}
