package openvocab

import (
	"context"
)

// VocabularyStore persists vocabulary configuration records.
type VocabularyStore interface {
	// LoadVocabulary returns ErrCodeVocabularyNotFound when id is unknown.
	LoadVocabulary(ctx context.Context, id string) (*Vocabulary, error)
	ListVocabularies(ctx context.Context) ([]*Vocabulary, error)
	SaveVocabulary(ctx context.Context, v *Vocabulary) error
	DeleteVocabulary(ctx context.Context, id string) error
}

// AssociationStore persists association configuration records.
type AssociationStore interface {
	// LoadAssociation returns ErrCodeAssociationNotFound when id is unknown.
	LoadAssociation(ctx context.Context, id string) (*Association, error)
	ListAssociations(ctx context.Context) ([]*Association, error)
	SaveAssociation(ctx context.Context, a *Association) error
	DeleteAssociation(ctx context.Context, id string) error
}

// ConfigStore is the configuration persistence collaborator.
type ConfigStore interface {
	VocabularyStore
	AssociationStore
}

// FieldIntrospector reports the physical fields attached to a bundle.
type FieldIntrospector interface {
	ListFields(ctx context.Context, hostType, bundle string) ([]FieldDefinition, error)
}

// Selector is what a target provider hands to selection widgets.
type Selector struct {
	TargetType string         `json:"target_type"`
	Settings   map[string]any `json:"settings"`
}

// TargetProvider knows which records of a vocabulary can be referenced.
type TargetProvider interface {
	Label() string
	// ResolveType returns the record type that vocabularies using this provider reference.
	ResolveType() string
	BuildSelector(settings map[string]any) Selector
}

// TargetChecker is optionally implemented by providers that can tell which
// target ids still exist. Formatters use it to drop dangling references.
type TargetChecker interface {
	ExistingTargets(ctx context.Context, settings map[string]any, targetIDs []string) (map[string]bool, error)
}

// VirtualField is the read/write view of one association's references on a record.
type VirtualField interface {
	Schema() *VirtualFieldSchema
	// Items returns the association's items in physical order, recomputing
	// them when the anchor value changed since the last read.
	Items() ([]VirtualItem, error)
	TargetIDs() ([]string, error)
	Set(items []VirtualItem) error
	SetTargetIDs(ids ...string) error
	Append(item VirtualItem) error
	Remove(index int) error
	SetTarget(index int, targetID string) error
	Filter(keep func(index int, item VirtualItem) bool) error
	// Validate checks the current items against the field's cardinality and required flag.
	Validate() error
	// Invalidate forces the next read to recompute from the anchor field.
	Invalidate()
}

// Engine provides the projection engine operations
type Engine interface {
	// Vocabulary configuration
	SaveVocabulary(ctx context.Context, v *Vocabulary) error
	DeleteVocabulary(ctx context.Context, id string) error
	GetVocabulary(ctx context.Context, id string) (*Vocabulary, error)
	ListVocabularies(ctx context.Context) ([]*Vocabulary, error)
	VocabularyChangeImpact(ctx context.Context, id string) ([]*Association, error)

	// Association configuration
	CreateAssociation(ctx context.Context, a *Association) (*Association, error)
	UpdateAssociation(ctx context.Context, a *Association) error
	DeleteAssociation(ctx context.Context, id string) error
	GetAssociation(ctx context.Context, id string) (*Association, error)
	ListAssociationsByAnchorField(ctx context.Context, anchorFieldID string) ([]*Association, error)
	ListAssociationsByVocabulary(ctx context.Context, vocabularyID string) ([]*Association, error)
	NextWeight(ctx context.Context) (int, error)

	// Schema synthesis
	Synthesize(ctx context.Context, hostType, bundle string) (BundleFields, error)
	Invalidate(hostType, bundle string)

	// Record projection
	Field(ctx context.Context, record *Record, fieldName string) (VirtualField, error)
	GroupByAssociation(ctx context.Context, record *Record, anchorField string) ([]AssociationGroup, error)
	PurgeOrphans(ctx context.Context, record *Record, anchorField string) (int, error)

	// Layout
	PlaceVirtualFields(ctx context.Context, layout *FormLayout, hostType, bundle string) error
}
