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

func runInitDB(args []string) error {
	flags := flag.NewFlagSet("init-db", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: openvocab-tools init-db [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	db := openvocab.DefaultConfig().Store.Database
	bindDatabaseFlags(flags, &db)
	seedDir := flags.String("seed-dir", getenvDefault("SEED_DIR", ""), "config directory whose records are copied into the new tables (optional)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx := context.Background()
	pool, err := factory.NewPool(ctx, db)
	if err != nil {
		return err
	}
	defer pool.Close()

	store, err := internal.NewPostgresConfigStore(pool, db.TableNames)
	if err != nil {
		return err
	}
	if err := store.CreateTables(ctx); err != nil {
		return err
	}
	if *seedDir == "" {
		return nil
	}

	source, err := internal.NewFileConfigStore(*seedDir)
	if err != nil {
		return err
	}
	return copyConfig(ctx, source, store)
}

func bindDatabaseFlags(flags *flag.FlagSet, db *openvocab.DatabaseConfig) {
	flags.StringVar(&db.Host, "db-host", getenvDefault("DB_HOST", db.Host), "database host")
	flags.IntVar(&db.Port, "db-port", getenvDefaultInt("DB_PORT", db.Port), "database port")
	flags.StringVar(&db.Database, "db-name", getenvDefault("DB_NAME", "openvocab"), "database name")
	flags.StringVar(&db.Username, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flags.StringVar(&db.Password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.StringVar(&db.SSLMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", db.SSLMode), "database sslmode")
	flags.StringVar(&db.TableNames.Vocabularies, "vocabulary-table", getenvDefault("VOCABULARY_TABLE", db.TableNames.Vocabularies), "vocabulary table name")
	flags.StringVar(&db.TableNames.Associations, "association-table", getenvDefault("ASSOCIATION_TABLE", db.TableNames.Associations), "association table name")
}

// copyConfig copies every record of src into dst, vocabularies first.
func copyConfig(ctx context.Context, src, dst openvocab.ConfigStore) error {
	vocabularies, err := src.ListVocabularies(ctx)
	if err != nil {
		return err
	}
	for _, v := range vocabularies {
		if err := dst.SaveVocabulary(ctx, v); err != nil {
			return err
		}
	}
	associations, err := src.ListAssociations(ctx)
	if err != nil {
		return err
	}
	for _, a := range associations {
		if err := dst.SaveAssociation(ctx, a); err != nil {
			return err
		}
	}
	fmt.Printf("copied %d vocabularies and %d associations\n", len(vocabularies), len(associations))
	return nil
}
