package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/lychee-technology/openvocab"
	"github.com/lychee-technology/openvocab/factory"
	"github.com/lychee-technology/openvocab/internal"
)

type snapshotOptions struct {
	dir  string
	name string
	cfg  openvocab.SnapshotConfig
}

func parseSnapshotFlags(command string, args []string) (*snapshotOptions, error) {
	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	opts := &snapshotOptions{cfg: openvocab.DefaultConfig().Snapshot}
	flags.StringVar(&opts.dir, "dir", getenvDefault("OPENVOCAB_DIR", ""), "configuration directory")
	flags.StringVar(&opts.name, "name", "", "snapshot name or object key")
	flags.StringVar(&opts.cfg.Bucket, "bucket", getenvDefault("SNAPSHOT_BUCKET", ""), "S3 bucket")
	flags.StringVar(&opts.cfg.Prefix, "prefix", getenvDefault("SNAPSHOT_PREFIX", opts.cfg.Prefix), "S3 key prefix")
	flags.StringVar(&opts.cfg.Region, "region", getenvDefault("AWS_REGION", ""), "S3 region")
	flags.StringVar(&opts.cfg.Endpoint, "endpoint", getenvDefault("S3_ENDPOINT", ""), "S3 endpoint override (e.g. MinIO)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if opts.dir == "" {
		return nil, fmt.Errorf("-dir is required")
	}
	return opts, nil
}

func (o *snapshotOptions) open(ctx context.Context) (*internal.FileConfigStore, *internal.S3SnapshotExporter, error) {
	store, err := internal.NewFileConfigStore(o.dir)
	if err != nil {
		return nil, nil, err
	}
	cfg := openvocab.DefaultConfig()
	cfg.Snapshot = o.cfg
	exporter, err := factory.NewSnapshotExporter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return store, exporter, nil
}

func runExport(args []string) error {
	opts, err := parseSnapshotFlags("export", args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	ctx := context.Background()
	store, exporter, err := opts.open(ctx)
	if err != nil {
		return err
	}
	key, err := exporter.Export(ctx, store, opts.name)
	if err != nil {
		return err
	}
	fmt.Printf("s3://%s/%s\n", opts.cfg.Bucket, key)
	return nil
}

func runImport(args []string) error {
	opts, err := parseSnapshotFlags("import", args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.name == "" {
		return fmt.Errorf("-name is required")
	}
	ctx := context.Background()
	store, exporter, err := opts.open(ctx)
	if err != nil {
		return err
	}
	snap, err := exporter.Import(ctx, store, opts.name)
	if err != nil {
		return err
	}
	fmt.Printf("imported snapshot %s: %d vocabularies, %d associations\n", snap.ID, len(snap.Vocabularies), len(snap.Associations))
	return nil
}
