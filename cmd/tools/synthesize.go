package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/lychee-technology/openvocab"
	"github.com/lychee-technology/openvocab/factory"
	"github.com/lychee-technology/openvocab/internal"
)

type bundleOptions struct {
	dir      string
	hostType string
	bundle   string
}

func (o *bundleOptions) register(flags *flag.FlagSet) {
	flags.StringVar(&o.dir, "dir", getenvDefault("OPENVOCAB_DIR", ""), "configuration directory")
	flags.StringVar(&o.hostType, "host", "", "host record type")
	flags.StringVar(&o.bundle, "bundle", "", "host bundle")
}

func (o *bundleOptions) check() error {
	if o.dir == "" || o.hostType == "" || o.bundle == "" {
		return fmt.Errorf("-dir, -host and -bundle are required")
	}
	return nil
}

func openFileEngine(dir string) (openvocab.Engine, error) {
	cfg := openvocab.DefaultConfig()
	cfg.Store.Driver = openvocab.StoreDriverFile
	cfg.Store.Directory = dir
	store, err := internal.NewFileConfigStore(dir)
	if err != nil {
		return nil, err
	}
	return factory.NewEngineWithConfig(cfg, store, store, nil)
}

type synthesizedField struct {
	*openvocab.VirtualFieldSchema
	JSONSchema any `json:"json_schema,omitempty"`
}

func runSynthesize(args []string) error {
	flags := flag.NewFlagSet("synthesize", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	var opts bundleOptions
	opts.register(flags)
	withSchema := flags.Bool("json-schema", false, "include the JSON Schema of each field value")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := opts.check(); err != nil {
		return err
	}

	engine, err := openFileEngine(opts.dir)
	if err != nil {
		return err
	}
	fields, err := engine.Synthesize(context.Background(), opts.hostType, opts.bundle)
	if err != nil {
		return err
	}

	out := make([]synthesizedField, 0, len(fields))
	for _, s := range fields.Ordered() {
		f := synthesizedField{VirtualFieldSchema: s}
		if *withSchema {
			f.JSONSchema = s.JSONSchema()
		}
		out = append(out, f)
	}
	return writeJSON(os.Stdout, out)
}

func runLayout(args []string) error {
	flags := flag.NewFlagSet("layout", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	var opts bundleOptions
	opts.register(flags)
	layoutPath := flags.String("layout", "", "form layout JSON file")
	outPath := flags.String("out", "", "output file (default: stdout)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := opts.check(); err != nil {
		return err
	}
	if *layoutPath == "" {
		return fmt.Errorf("-layout is required")
	}

	data, err := os.ReadFile(*layoutPath)
	if err != nil {
		return fmt.Errorf("read layout: %w", err)
	}
	layout := openvocab.NewFormLayout(opts.hostType, opts.bundle)
	if err := json.Unmarshal(data, layout); err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}

	engine, err := openFileEngine(opts.dir)
	if err != nil {
		return err
	}
	if err := engine.PlaceVirtualFields(context.Background(), layout, opts.hostType, opts.bundle); err != nil {
		return err
	}

	if *outPath == "" {
		return writeJSON(os.Stdout, layout)
	}
	f, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()
	return writeJSON(f, layout)
}

func writeJSON(f *os.File, v any) error {
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
