package factory

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	awsCreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/openvocab"
	"github.com/lychee-technology/openvocab/internal"
	"go.uber.org/zap"
)

// NewEngineWithConfig creates a projection Engine over store. fields reports
// the physical fields of each bundle; providers maps vocabulary handler ids
// to target providers ("default:<type>" handlers resolve without registration).
//
// Usage:
//
//	cfg := openvocab.DefaultConfig()
//	store, closeStore, err := factory.NewConfigStore(ctx, cfg)
//	if err != nil {
//	    // handle error
//	}
//	defer closeStore()
//	engine, err := factory.NewEngineWithConfig(cfg, store, introspector, nil)
func NewEngineWithConfig(cfg *openvocab.Config, store openvocab.ConfigStore, fields openvocab.FieldIntrospector, providers map[string]openvocab.TargetProvider) (openvocab.Engine, error) {
	if cfg == nil {
		cfg = openvocab.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("config store is required")
	}
	if fields == nil {
		fi, ok := store.(openvocab.FieldIntrospector)
		if !ok {
			return nil, fmt.Errorf("field introspector is required for the %s store", cfg.Store.Driver)
		}
		fields = fi
	}

	registry := internal.NewTargetProviderRegistry()
	for id, p := range providers {
		registry.Register(id, p)
	}
	return internal.NewEngine(cfg, store, fields, registry), nil
}

// NewConfigStore opens the configuration store selected by cfg.Store.Driver.
// The returned func releases its resources.
func NewConfigStore(ctx context.Context, cfg *openvocab.Config) (openvocab.ConfigStore, func(), error) {
	noop := func() {}
	switch cfg.Store.Driver {
	case openvocab.StoreDriverMemory:
		return internal.NewMemoryConfigStore(), noop, nil
	case openvocab.StoreDriverFile:
		store, err := internal.NewFileConfigStore(cfg.Store.Directory)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case openvocab.StoreDriverPostgres:
		pool, err := NewPool(ctx, cfg.Store.Database)
		if err != nil {
			return nil, nil, err
		}
		store, err := internal.NewPostgresConfigStore(pool, cfg.Store.Database.TableNames)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		guarded := internal.NewGuardedConfigStore(store, internal.NewCircuitBreaker(cfg.Store.Database.Breaker))
		return guarded, pool.Close, nil
	default:
		return nil, nil, openvocab.NewError(openvocab.ErrorTypeValidation, openvocab.ErrCodeUnsupportedDriver,
			fmt.Sprintf("unsupported store driver %q", cfg.Store.Driver))
	}
}

// NewPool creates a pgx pool from the database settings.
func NewPool(ctx context.Context, db openvocab.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(db))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if db.MaxConnections > 0 {
		poolCfg.MaxConns = int32(db.MaxConnections)
	}
	if db.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = db.ConnMaxLifetime
	}
	if db.Timeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = db.Timeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	zap.S().Infow("connected to configuration database", "host", db.Host, "database", db.Database)
	return pool, nil
}

// BuildConnString renders a postgres:// URL.
func BuildConnString(db openvocab.DatabaseConfig) string {
	var userInfo *url.Userinfo
	if db.Password != "" {
		userInfo = url.UserPassword(db.Username, db.Password)
	} else {
		userInfo = url.User(db.Username)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   "/" + db.Database,
	}
	q := url.Values{}
	if db.SSLMode != "" {
		q.Set("sslmode", db.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewS3Client builds an S3 client from the default AWS configuration chain,
// overridden by the snapshot region and endpoint when set.
func NewS3Client(ctx context.Context, cfg openvocab.SnapshotConfig) (*s3.Client, error) {
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}
	if envKey := os.Getenv("AWS_ACCESS_KEY_ID"); envKey != "" {
		awsCfg.Credentials = awsCreds.NewStaticCredentialsProvider(envKey, os.Getenv("AWS_SECRET_ACCESS_KEY"), os.Getenv("AWS_SESSION_TOKEN"))
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewSnapshotExporter creates an S3 snapshot exporter for cfg.Snapshot.
func NewSnapshotExporter(ctx context.Context, cfg *openvocab.Config) (*internal.S3SnapshotExporter, error) {
	if err := internal.ValidateSnapshotConfig(cfg.Snapshot); err != nil {
		return nil, err
	}
	client, err := NewS3Client(ctx, cfg.Snapshot)
	if err != nil {
		return nil, err
	}
	return internal.NewS3SnapshotExporter(client, cfg.Snapshot)
}
