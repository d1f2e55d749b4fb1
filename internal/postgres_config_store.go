package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/openvocab"
	"go.uber.org/zap"
)

type configStorePool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresConfigStore persists vocabularies and associations in two tables.
type PostgresConfigStore struct {
	pool   configStorePool
	tables openvocab.TableNames
}

var _ openvocab.ConfigStore = (*PostgresConfigStore)(nil)

// NewPostgresConfigStore creates a store over pool using the given table names.
func NewPostgresConfigStore(pool configStorePool, tables openvocab.TableNames) (*PostgresConfigStore, error) {
	if tables.Vocabularies == "" {
		return nil, fmt.Errorf("vocabulary table name cannot be empty")
	}
	if tables.Associations == "" {
		return nil, fmt.Errorf("association table name cannot be empty")
	}
	return &PostgresConfigStore{pool: pool, tables: tables}, nil
}

// CreateTables creates the configuration tables when they do not exist.
func (s *PostgresConfigStore) CreateTables(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			handler TEXT NOT NULL,
			handler_settings JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, sanitizeIdentifier(s.tables.Vocabularies)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			vocabulary TEXT NOT NULL,
			name TEXT NOT NULL,
			label TEXT NOT NULL,
			fields TEXT[] NOT NULL DEFAULT '{}',
			widget_type TEXT NOT NULL DEFAULT '',
			cardinality INTEGER NOT NULL,
			required BOOLEAN NOT NULL DEFAULT FALSE,
			predicate TEXT NOT NULL DEFAULT '',
			help_text TEXT NOT NULL DEFAULT '',
			weight INTEGER NOT NULL DEFAULT 0
		)`, sanitizeIdentifier(s.tables.Associations)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (vocabulary)`,
			sanitizeIdentifier(indexName(s.tables.Associations, "vocabulary_idx")),
			sanitizeIdentifier(s.tables.Associations)),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return openvocab.NewStoreError("failed to create configuration tables", err)
		}
	}
	zap.S().Infow("configuration tables ready", "vocabularies", s.tables.Vocabularies, "associations", s.tables.Associations)
	return nil
}

// indexName derives an index name from a possibly schema-qualified table
// name. Postgres creates the index in the table's schema, so only the bare
// table name is used.
func indexName(table, suffix string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		table = table[i+1:]
	}
	return strings.Trim(table, `"`) + "_" + suffix
}

const vocabularyColumns = "id, label, description, handler, handler_settings"

func (s *PostgresConfigStore) LoadVocabulary(ctx context.Context, id string) (*openvocab.Vocabulary, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", vocabularyColumns, sanitizeIdentifier(s.tables.Vocabularies))
	v, err := scanVocabulary(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, openvocab.NewVocabularyNotFoundError(id)
		}
		return nil, openvocab.NewStoreError(fmt.Sprintf("failed to load vocabulary %s", id), err)
	}
	return v, nil
}

func (s *PostgresConfigStore) ListVocabularies(ctx context.Context) ([]*openvocab.Vocabulary, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", vocabularyColumns, sanitizeIdentifier(s.tables.Vocabularies))
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, openvocab.NewStoreError("failed to query vocabularies", err)
	}
	defer rows.Close()

	var out []*openvocab.Vocabulary
	for rows.Next() {
		v, err := scanVocabulary(rows)
		if err != nil {
			return nil, openvocab.NewStoreError("failed to scan vocabulary row", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, openvocab.NewStoreError("error iterating vocabulary rows", err)
	}
	return out, nil
}

func (s *PostgresConfigStore) SaveVocabulary(ctx context.Context, v *openvocab.Vocabulary) error {
	settings, err := json.Marshal(nonNilSettings(v.HandlerSettings))
	if err != nil {
		return openvocab.NewStoreError(fmt.Sprintf("failed to encode handler settings of %s", v.ID), err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id)
			DO UPDATE SET label = EXCLUDED.label, description = EXCLUDED.description,
				handler = EXCLUDED.handler, handler_settings = EXCLUDED.handler_settings`,
		sanitizeIdentifier(s.tables.Vocabularies), vocabularyColumns,
	)
	if _, err := s.pool.Exec(ctx, query, v.ID, v.Label, v.Description, v.Handler, settings); err != nil {
		return openvocab.NewStoreError(fmt.Sprintf("failed to save vocabulary %s", v.ID), err)
	}
	return nil
}

func (s *PostgresConfigStore) DeleteVocabulary(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", sanitizeIdentifier(s.tables.Vocabularies))
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return openvocab.NewStoreError(fmt.Sprintf("failed to delete vocabulary %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return openvocab.NewVocabularyNotFoundError(id)
	}
	return nil
}

const associationColumns = "id, vocabulary, name, label, fields, widget_type, cardinality, required, predicate, help_text, weight"

func (s *PostgresConfigStore) LoadAssociation(ctx context.Context, id string) (*openvocab.Association, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", associationColumns, sanitizeIdentifier(s.tables.Associations))
	a, err := scanAssociation(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, openvocab.NewAssociationNotFoundError(id)
		}
		return nil, openvocab.NewStoreError(fmt.Sprintf("failed to load association %s", id), err)
	}
	return a, nil
}

func (s *PostgresConfigStore) ListAssociations(ctx context.Context) ([]*openvocab.Association, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY weight, id", associationColumns, sanitizeIdentifier(s.tables.Associations))
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, openvocab.NewStoreError("failed to query associations", err)
	}
	defer rows.Close()

	var out []*openvocab.Association
	for rows.Next() {
		a, err := scanAssociation(rows)
		if err != nil {
			return nil, openvocab.NewStoreError("failed to scan association row", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, openvocab.NewStoreError("error iterating association rows", err)
	}
	return out, nil
}

func (s *PostgresConfigStore) SaveAssociation(ctx context.Context, a *openvocab.Association) error {
	fields := a.Fields
	if fields == nil {
		fields = []string{}
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id)
			DO UPDATE SET label = EXCLUDED.label, fields = EXCLUDED.fields,
				widget_type = EXCLUDED.widget_type, cardinality = EXCLUDED.cardinality,
				required = EXCLUDED.required, predicate = EXCLUDED.predicate,
				help_text = EXCLUDED.help_text, weight = EXCLUDED.weight`,
		sanitizeIdentifier(s.tables.Associations), associationColumns,
	)
	_, err := s.pool.Exec(ctx, query,
		a.ID, a.Vocabulary, a.Name, a.Label, fields, a.WidgetType,
		a.Cardinality, a.Required, a.Predicate, a.HelpText, a.Weight,
	)
	if err != nil {
		return openvocab.NewStoreError(fmt.Sprintf("failed to save association %s", a.ID), err)
	}
	return nil
}

func (s *PostgresConfigStore) DeleteAssociation(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", sanitizeIdentifier(s.tables.Associations))
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return openvocab.NewStoreError(fmt.Sprintf("failed to delete association %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return openvocab.NewAssociationNotFoundError(id)
	}
	return nil
}

func scanVocabulary(row pgx.Row) (*openvocab.Vocabulary, error) {
	var (
		v        openvocab.Vocabulary
		settings []byte
	)
	if err := row.Scan(&v.ID, &v.Label, &v.Description, &v.Handler, &settings); err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &v.HandlerSettings); err != nil {
			return nil, fmt.Errorf("invalid handler settings for %s: %w", v.ID, err)
		}
	}
	return &v, nil
}

func scanAssociation(row pgx.Row) (*openvocab.Association, error) {
	var a openvocab.Association
	err := row.Scan(
		&a.ID, &a.Vocabulary, &a.Name, &a.Label, &a.Fields, &a.WidgetType,
		&a.Cardinality, &a.Required, &a.Predicate, &a.HelpText, &a.Weight,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func nonNilSettings(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
