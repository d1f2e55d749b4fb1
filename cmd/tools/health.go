package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lychee-technology/openvocab"
	"github.com/lychee-technology/openvocab/factory"
	"github.com/lychee-technology/openvocab/internal"
	"go.uber.org/zap"
)

func runHealth(args []string) error {
	flags := flag.NewFlagSet("health", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)

	cfg := openvocab.DefaultConfig()
	bindDatabaseFlags(flags, &cfg.Store.Database)
	flags.StringVar(&cfg.Snapshot.Bucket, "bucket", getenvDefault("SNAPSHOT_BUCKET", ""), "S3 snapshot bucket (skipped when empty)")
	flags.StringVar(&cfg.Snapshot.Region, "region", getenvDefault("AWS_REGION", ""), "S3 region")
	flags.StringVar(&cfg.Snapshot.Endpoint, "endpoint", getenvDefault("S3_ENDPOINT", ""), "S3 endpoint override (e.g. MinIO)")
	timeout := flags.Duration("timeout", 5*time.Second, "timeout of each check")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := internal.ValidatePostgresConfig(cfg.Store.Database); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := factory.NewPool(ctx, cfg.Store.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := internal.PostgresHealthCheck(ctx, pool, cfg.Store.Database.TableNames, *timeout); err != nil {
		return err
	}
	zap.S().Infow("postgres configuration store healthy", "host", cfg.Store.Database.Host, "database", cfg.Store.Database.Database)

	if cfg.Snapshot.Bucket == "" {
		fmt.Println("ok")
		return nil
	}
	client, err := factory.NewS3Client(ctx, cfg.Snapshot)
	if err != nil {
		return err
	}
	if err := internal.S3HealthCheck(ctx, client, cfg.Snapshot, *timeout); err != nil {
		return err
	}
	zap.S().Infow("snapshot bucket reachable", "bucket", cfg.Snapshot.Bucket)
	fmt.Println("ok")
	return nil
}
