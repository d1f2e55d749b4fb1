package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/openvocab"
)

const defaultHealthTimeout = 5 * time.Second

// ValidatePostgresConfig performs basic sanity checks on the database settings.
func ValidatePostgresConfig(cfg openvocab.DatabaseConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("database.port must be a valid TCP port")
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("database.maxConnections must be greater than 0")
	}
	return nil
}

type healthPool interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresHealthCheck pings the database and checks that both configuration
// tables are readable. timeout may be 0 to use the default (5s).
func PostgresHealthCheck(ctx context.Context, pool healthPool, tables openvocab.TableNames, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	for _, table := range []string{tables.Vocabularies, tables.Associations} {
		var n int64
		query := fmt.Sprintf("SELECT count(*) FROM %s", sanitizeIdentifier(table))
		if err := pool.QueryRow(ctx, query).Scan(&n); err != nil {
			return fmt.Errorf("configuration table %s not readable: %w", table, err)
		}
	}
	return nil
}

type headBucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3HealthCheck checks that the snapshot bucket exists and is reachable with
// the configured credentials.
func S3HealthCheck(ctx context.Context, client headBucketAPI, cfg openvocab.SnapshotConfig, timeout time.Duration) error {
	if err := ValidateSnapshotConfig(cfg); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s not reachable: %w", cfg.Bucket, err)
	}
	return nil
}
