package main

import (
	"context"
	"testing"

	"github.com/lychee-technology/openvocab"
	"github.com/lychee-technology/openvocab/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	ctx := context.Background()
	store := internal.NewMemoryConfigStore()
	require.NoError(t, store.SaveVocabulary(ctx, &openvocab.Vocabulary{ID: "topics", Handler: "default:taxonomy_term"}))
	require.NoError(t, store.SaveVocabulary(ctx, &openvocab.Vocabulary{ID: "custom", Handler: "unregistered"}))
	require.NoError(t, store.SaveAssociation(ctx, &openvocab.Association{ID: "topics.tags", Name: "tags", Vocabulary: "topics", Cardinality: 1}))
	require.NoError(t, store.SaveAssociation(ctx, &openvocab.Association{ID: "gone.refs", Name: "refs", Vocabulary: "gone", Cardinality: 1, Weight: 1}))
	require.NoError(t, store.SaveAssociation(ctx, &openvocab.Association{ID: "topics.zero", Name: "zero", Vocabulary: "topics", Cardinality: 0, Weight: 2}))

	problems, err := validateConfig(ctx, store, internal.NewTargetProviderRegistry())
	require.NoError(t, err)
	require.Len(t, problems, 3)
	assert.Contains(t, problems[0], "vocabulary custom")
	assert.Contains(t, problems[1], "association gone.refs")
	assert.Contains(t, problems[2], "association topics.zero")
}

func TestValidateConfigClean(t *testing.T) {
	ctx := context.Background()
	store := internal.NewMemoryConfigStore()
	require.NoError(t, store.SaveVocabulary(ctx, &openvocab.Vocabulary{ID: "topics", Handler: "default:taxonomy_term"}))

	problems, err := validateConfig(ctx, store, internal.NewTargetProviderRegistry())
	require.NoError(t, err)
	assert.Empty(t, problems)
}
