package database

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/korjavin/intakebot/config"
)

// Open builds the Store selected by cfg.Driver
func Open(ctx context.Context, cfg config.StoreConfig) (*Documents, error) {
	var (
		backend Backend
		err     error
	)

	switch cfg.Driver {
	case "memory":
		backend = NewMemory()
	case "file":
		backend, err = NewFiles(cfg.DataDir)
	case "sqlite":
		backend, err = NewSQL("sqlite3", cfg.DBPath)
	case "postgres":
		backend, err = NewSQL("postgres", cfg.DatabaseURL)
	case "redis":
		backend, err = NewRedis(ctx, cfg.RedisAddr, cfg.RedisPass)
	case "s3":
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		awsCfg, loadErr := awsconfig.LoadDefaultConfig(ctx, opts...)
		if loadErr != nil {
			return nil, fmt.Errorf("load AWS config: %w", loadErr)
		}
		backend = NewS3(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	slog.Info("document store ready", "driver", cfg.Driver)
	return NewDocuments(backend), nil
}
