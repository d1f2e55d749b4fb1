package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/lychee-technology/openvocab"
	"github.com/lychee-technology/openvocab/internal"
)

func runValidate(args []string) error {
	flags := flag.NewFlagSet("validate", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	dir := flags.String("dir", getenvDefault("OPENVOCAB_DIR", ""), "configuration directory")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *dir == "" {
		return fmt.Errorf("-dir is required")
	}

	store, err := internal.NewFileConfigStore(*dir)
	if err != nil {
		return err
	}
	problems, err := validateConfig(context.Background(), store, internal.NewTargetProviderRegistry())
	if err != nil {
		return err
	}
	for _, p := range problems {
		fmt.Println(p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) found", len(problems))
	}
	fmt.Println("configuration is valid")
	return nil
}

// validateConfig reports every configuration problem instead of stopping at the first.
func validateConfig(ctx context.Context, store openvocab.ConfigStore, providers *internal.TargetProviderRegistry) ([]string, error) {
	vocabularies, err := store.ListVocabularies(ctx)
	if err != nil {
		return nil, err
	}
	associations, err := store.ListAssociations(ctx)
	if err != nil {
		return nil, err
	}

	var problems []string
	known := make(map[string]bool, len(vocabularies))
	for _, v := range vocabularies {
		known[v.ID] = true
		if err := v.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("vocabulary %s: %v", v.ID, err))
			continue
		}
		if _, err := providers.Get(v.Handler); err != nil {
			problems = append(problems, fmt.Sprintf("vocabulary %s: %v", v.ID, err))
		}
	}

	openvocab.SortAssociations(associations)
	for _, a := range associations {
		if err := a.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("association %s: %v", a.ID, err))
			continue
		}
		if !known[a.Vocabulary] {
			problems = append(problems, fmt.Sprintf("association %s: %v", a.ID, openvocab.NewRegistryInconsistentError(a.ID, a.Vocabulary)))
		}
	}
	return problems, nil
}
