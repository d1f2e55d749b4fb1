package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/openvocab"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTables = openvocab.TableNames{Vocabularies: "vocab", Associations: "assoc"}

func newMockConfigStore(t *testing.T) (*PostgresConfigStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewPostgresConfigStore(mock, testTables)
	require.NoError(t, err)
	return store, mock
}

var associationRowColumns = []string{"id", "vocabulary", "name", "label", "fields", "widget_type", "cardinality", "required", "predicate", "help_text", "weight"}

func TestNewPostgresConfigStoreRequiresTables(t *testing.T) {
	_, err := NewPostgresConfigStore(nil, openvocab.TableNames{Associations: "assoc"})
	assert.Error(t, err)
	_, err = NewPostgresConfigStore(nil, openvocab.TableNames{Vocabularies: "vocab"})
	assert.Error(t, err)
}

func TestPostgresConfigStoreCreateTables(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockConfigStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "vocab"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "assoc"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "assoc_vocabulary_idx" ON "assoc"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.CreateTables(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConfigStoreVocabularies(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockConfigStore(t)

	mock.ExpectQuery(`SELECT id, label, description, handler, handler_settings FROM "vocab" WHERE id = \$1`).
		WithArgs("topics").
		WillReturnRows(pgxmock.NewRows([]string{"id", "label", "description", "handler", "handler_settings"}).
			AddRow("topics", "Topics", "", "default:taxonomy_term", []byte(`{"target_bundles":["tags"]}`)))

	v, err := store.LoadVocabulary(ctx, "topics")
	require.NoError(t, err)
	assert.Equal(t, "default:taxonomy_term", v.Handler)
	assert.Equal(t, []any{"tags"}, v.HandlerSettings["target_bundles"])

	mock.ExpectQuery(`FROM "vocab" WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = store.LoadVocabulary(ctx, "missing")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeVocabularyNotFound))

	mock.ExpectQuery(`FROM "vocab" ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "label", "description", "handler", "handler_settings"}).
			AddRow("people", "People", "", "default:user", []byte(`{}`)).
			AddRow("topics", "Topics", "", "default:taxonomy_term", []byte(nil)))
	list, err := store.ListVocabularies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "people", list[0].ID)
	assert.Nil(t, list[1].HandlerSettings)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConfigStoreSaveAndDeleteVocabulary(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockConfigStore(t)

	mock.ExpectExec(`INSERT INTO "vocab"`).
		WithArgs("topics", "Topics", "", "default:taxonomy_term", []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.SaveVocabulary(ctx, &openvocab.Vocabulary{ID: "topics", Label: "Topics", Handler: "default:taxonomy_term"}))

	mock.ExpectExec(`DELETE FROM "vocab" WHERE id = \$1`).
		WithArgs("topics").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, store.DeleteVocabulary(ctx, "topics"))

	mock.ExpectExec(`DELETE FROM "vocab" WHERE id = \$1`).
		WithArgs("topics").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	err := store.DeleteVocabulary(ctx, "topics")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeVocabularyNotFound))

	mock.ExpectExec(`INSERT INTO "vocab"`).
		WithArgs("broken", "", "", "x", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	err = store.SaveVocabulary(ctx, &openvocab.Vocabulary{ID: "broken", Handler: "x"})
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeStoreFailed))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConfigStoreAssociations(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockConfigStore(t)

	mock.ExpectQuery(`FROM "assoc" ORDER BY weight, id`).
		WillReturnRows(pgxmock.NewRows(associationRowColumns).
			AddRow("topics.tags", "topics", "tags", "Tags", []string{"node.article.field_refs"}, "options_select", 3, true, "", "", 0).
			AddRow("people.authors", "people", "authors", "Authors", []string{}, "", -1, false, "", "", 1))

	list, err := store.ListAssociations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"node.article.field_refs"}, list[0].Fields)
	assert.Equal(t, 3, list[0].Cardinality)
	assert.Equal(t, openvocab.CardinalityUnlimited, list[1].Cardinality)

	mock.ExpectQuery(`FROM "assoc" WHERE id = \$1`).
		WithArgs("topics.gone").
		WillReturnError(pgx.ErrNoRows)
	_, err = store.LoadAssociation(ctx, "topics.gone")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeAssociationNotFound))

	a := &openvocab.Association{ID: "topics.tags", Vocabulary: "topics", Name: "tags", Label: "Tags", Cardinality: 1, Weight: 4}
	mock.ExpectExec(`INSERT INTO "assoc"`).
		WithArgs("topics.tags", "topics", "tags", "Tags", []string{}, "", 1, false, "", "", 4).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.SaveAssociation(ctx, a))

	mock.ExpectExec(`DELETE FROM "assoc" WHERE id = \$1`).
		WithArgs("topics.tags").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	err = store.DeleteAssociation(ctx, "topics.tags")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeAssociationNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConfigStoreQueryError(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockConfigStore(t)

	mock.ExpectQuery(`FROM "assoc" ORDER BY weight, id`).WillReturnError(errors.New("timeout"))
	_, err := store.ListAssociations(ctx)
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeStoreFailed))
	require.NoError(t, mock.ExpectationsWereMet())
}
