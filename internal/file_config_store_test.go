package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lychee-technology/openvocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileConfigStoreReadsYAML(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFixture(t, dir, "vocabularies/topics.yaml", `
label: Topics
handler: default:taxonomy_term
handler_settings:
  target_bundles: [tags]
`)
	writeFixture(t, dir, "associations/topics.tags.yml", `
label: Tags
name: tags
vocabulary: topics
fields: [node.article.field_refs]
cardinality: -1
weight: 2
`)
	writeFixture(t, dir, "fields/node.article.yaml", `
- name: field_refs
  type: open_vocabulary_reference
- name: body
  type: text_long
`)

	store, err := NewFileConfigStore(dir)
	require.NoError(t, err)

	v, err := store.LoadVocabulary(ctx, "topics")
	require.NoError(t, err)
	assert.Equal(t, "topics", v.ID, "id defaults to the file name")
	assert.Equal(t, "default:taxonomy_term", v.Handler)

	a, err := store.LoadAssociation(ctx, "topics.tags")
	require.NoError(t, err)
	assert.Equal(t, "topics.tags", a.ID)
	assert.Equal(t, openvocab.CardinalityUnlimited, a.Cardinality)
	assert.Equal(t, 2, a.Weight)

	defs, err := store.ListFields(ctx, "node", "article")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.True(t, defs[0].IsMultiplexed())
	assert.Equal(t, "node", defs[0].HostType)
	assert.Equal(t, "article", defs[0].Bundle)

	none, err := store.ListFields(ctx, "node", "page")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileConfigStoreWriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFixture(t, dir, "vocabularies/topics.yaml", "handler: default:node\n")

	store, err := NewFileConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.SaveVocabulary(ctx, &openvocab.Vocabulary{ID: "topics", Label: "Topics", Handler: "default:taxonomy_term"}))
	_, err = os.Stat(filepath.Join(dir, "vocabularies", "topics.yaml"))
	assert.True(t, os.IsNotExist(err), "json write replaces the yaml copy")

	v, err := store.LoadVocabulary(ctx, "topics")
	require.NoError(t, err)
	assert.Equal(t, "default:taxonomy_term", v.Handler)

	for _, name := range []string{"b", "a"} {
		require.NoError(t, store.SaveAssociation(ctx, &openvocab.Association{
			ID: "topics." + name, Name: name, Vocabulary: "topics", Cardinality: 1,
		}))
	}
	list, err := store.ListAssociations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "topics.a", list[0].ID)

	require.NoError(t, store.DeleteAssociation(ctx, "topics.a"))
	err = store.DeleteAssociation(ctx, "topics.a")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeAssociationNotFound))

	require.NoError(t, store.SaveFields("node", "article", []openvocab.FieldDefinition{{Name: "field_refs", Type: openvocab.MultiplexedFieldType}}))
	defs, err := store.ListFields(ctx, "node", "article")
	require.NoError(t, err)
	assert.Equal(t, openvocab.AnchorFieldRef{HostType: "node", Bundle: "article", FieldName: "field_refs"}, defs[0].Ref())
}

func TestFileConfigStoreErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileConfigStore(dir)
	require.NoError(t, err)

	_, err = store.LoadVocabulary(ctx, "missing")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeVocabularyNotFound))

	_, err = store.LoadVocabulary(ctx, "../escape")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeValidationFailed))

	writeFixture(t, dir, "vocabularies/broken.json", "{not json")
	_, err = store.ListVocabularies(ctx)
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeStoreFailed))
}

func TestFileConfigStoreBacksEngine(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.SaveFields(testHost, testBundle, []openvocab.FieldDefinition{{Name: testAnchor, Type: openvocab.MultiplexedFieldType}}))

	engine := NewEngine(openvocab.DefaultConfig(), store, store, nil)
	require.NoError(t, engine.SaveVocabulary(ctx, &openvocab.Vocabulary{ID: "topics", Handler: "default:taxonomy_term"}))
	_, err = engine.CreateAssociation(ctx, &openvocab.Association{Name: "tags", Vocabulary: "topics", Cardinality: 1, Fields: []string{testAnchorID}})
	require.NoError(t, err)

	fields, err := engine.Synthesize(ctx, testHost, testBundle)
	require.NoError(t, err)
	assert.Len(t, fields, 1)
}
