package internal

import (
	"context"
	"os"
	"testing"

	"github.com/lychee-technology/openvocab"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.DebugLevel),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	os.Exit(m.Run())
}

const (
	testHost   = "node"
	testBundle = "article"
	testAnchor = "field_refs"
)

var testAnchorID = testHost + "." + testBundle + "." + testAnchor

type testFixture struct {
	ctx    context.Context
	store  *MemoryConfigStore
	engine openvocab.Engine
}

// newTestFixture builds an engine over a memory store with two vocabularies
// and one multiplexed anchor field on node.article.
func newTestFixture(t *testing.T, mutate ...func(*openvocab.Config)) *testFixture {
	t.Helper()
	ctx := context.Background()
	cfg := openvocab.DefaultConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	store := NewMemoryConfigStore()
	store.DeclareField(openvocab.FieldDefinition{Name: testAnchor, Type: openvocab.MultiplexedFieldType, HostType: testHost, Bundle: testBundle})
	store.DeclareField(openvocab.FieldDefinition{Name: "body", Type: "text_long", HostType: testHost, Bundle: testBundle})

	engine := NewEngine(cfg, store, store, NewTargetProviderRegistry())
	require.NoError(t, engine.SaveVocabulary(ctx, &openvocab.Vocabulary{ID: "topics", Label: "Topics", Handler: "default:taxonomy_term"}))
	require.NoError(t, engine.SaveVocabulary(ctx, &openvocab.Vocabulary{ID: "people", Label: "People", Handler: "default:user"}))

	return &testFixture{ctx: ctx, store: store, engine: engine}
}

// associate creates an association on the test anchor field.
func (f *testFixture) associate(t *testing.T, vocabulary, name string, cardinality int) *openvocab.Association {
	t.Helper()
	a, err := f.engine.CreateAssociation(f.ctx, &openvocab.Association{
		Label:       name,
		Name:        name,
		Vocabulary:  vocabulary,
		Fields:      []string{testAnchorID},
		WidgetType:  "entity_reference_autocomplete",
		Cardinality: cardinality,
	})
	require.NoError(t, err)
	return a
}

// field returns the virtual field of association a on record.
func (f *testFixture) field(t *testing.T, record *openvocab.Record, a *openvocab.Association) openvocab.VirtualField {
	t.Helper()
	name := DeriveFieldName(a, openvocab.AnchorFieldRef{HostType: testHost, Bundle: testBundle, FieldName: testAnchor})
	vf, err := f.engine.Field(f.ctx, record, name)
	require.NoError(t, err)
	return vf
}

func newTestRecord() *openvocab.Record {
	return openvocab.NewRecord(testHost, testBundle, testAnchor)
}

func targetIDs(t *testing.T, vf openvocab.VirtualField) []string {
	t.Helper()
	ids, err := vf.TargetIDs()
	require.NoError(t, err)
	return ids
}

func physical(t *testing.T, record *openvocab.Record) []openvocab.ReferenceItem {
	t.Helper()
	items, _, err := record.Anchor(testAnchor)
	require.NoError(t, err)
	return items
}
