package internal

import (
	"context"

	"github.com/lychee-technology/openvocab"
	"go.uber.org/zap"
)

type engine struct {
	config      *openvocab.Config
	registry    *AssociationRegistry
	providers   *TargetProviderRegistry
	synthesizer *Synthesizer
	placement   *PlacementEngine
}

// NewEngine wires the projection engine over a configuration store, a field
// introspector and the registered target providers.
func NewEngine(
	config *openvocab.Config,
	store openvocab.ConfigStore,
	fields openvocab.FieldIntrospector,
	providers *TargetProviderRegistry,
) openvocab.Engine {
	if config == nil {
		config = openvocab.DefaultConfig()
	}
	if providers == nil {
		providers = NewTargetProviderRegistry()
	}

	var cache *SchemaCache
	if config.Cache.Enabled {
		cache = NewSchemaCache()
	}

	registry := NewAssociationRegistry(store)
	e := &engine{
		config:      config,
		registry:    registry,
		providers:   providers,
		synthesizer: NewSynthesizer(registry, fields, providers, cache),
		placement:   NewPlacementEngine(config.Placement),
	}
	registry.OnChange(e.onConfigChange)
	return e
}

// onConfigChange drops the synthesized schemas of every bundle touched by ev.
func (e *engine) onConfigChange(ev ChangeEvent) {
	zap.S().Debugw("configuration changed", "kind", ev.Kind, "association", ev.AssociationID, "vocabulary", ev.VocabularyID)
	for _, id := range ev.Fields {
		ref, err := openvocab.ParseAnchorFieldRef(id)
		if err != nil {
			e.synthesizer.Invalidate("", "")
			return
		}
		e.synthesizer.Invalidate(ref.HostType, ref.Bundle)
	}
}

func (e *engine) SaveVocabulary(ctx context.Context, v *openvocab.Vocabulary) error {
	if _, err := e.providers.Get(v.Handler); err != nil {
		return err
	}
	return e.registry.SaveVocabulary(ctx, v)
}

func (e *engine) DeleteVocabulary(ctx context.Context, id string) error {
	return e.registry.DeleteVocabulary(ctx, id)
}

func (e *engine) GetVocabulary(ctx context.Context, id string) (*openvocab.Vocabulary, error) {
	return e.registry.Vocabulary(ctx, id)
}

func (e *engine) ListVocabularies(ctx context.Context) ([]*openvocab.Vocabulary, error) {
	return e.registry.Vocabularies(ctx)
}

// VocabularyChangeImpact lists the associations whose virtual fields change
// when the vocabulary's handler or settings change.
func (e *engine) VocabularyChangeImpact(ctx context.Context, id string) ([]*openvocab.Association, error) {
	if _, err := e.registry.Vocabulary(ctx, id); err != nil {
		return nil, err
	}
	return e.registry.ListByVocabulary(ctx, id)
}

func (e *engine) CreateAssociation(ctx context.Context, a *openvocab.Association) (*openvocab.Association, error) {
	return e.registry.Create(ctx, a)
}

func (e *engine) UpdateAssociation(ctx context.Context, a *openvocab.Association) error {
	return e.registry.Update(ctx, a)
}

func (e *engine) DeleteAssociation(ctx context.Context, id string) error {
	return e.registry.Delete(ctx, id)
}

func (e *engine) GetAssociation(ctx context.Context, id string) (*openvocab.Association, error) {
	return e.registry.Get(ctx, id)
}

func (e *engine) ListAssociationsByAnchorField(ctx context.Context, anchorFieldID string) ([]*openvocab.Association, error) {
	return e.registry.ListByAnchorField(ctx, anchorFieldID)
}

func (e *engine) ListAssociationsByVocabulary(ctx context.Context, vocabularyID string) ([]*openvocab.Association, error) {
	return e.registry.ListByVocabulary(ctx, vocabularyID)
}

func (e *engine) NextWeight(ctx context.Context) (int, error) {
	return e.registry.NextWeight(ctx)
}

func (e *engine) Synthesize(ctx context.Context, hostType, bundle string) (openvocab.BundleFields, error) {
	return e.synthesizer.Synthesize(ctx, hostType, bundle)
}

func (e *engine) Invalidate(hostType, bundle string) {
	e.synthesizer.Invalidate(hostType, bundle)
}

// Field returns the virtual field fieldName of record.
func (e *engine) Field(ctx context.Context, record *openvocab.Record, fieldName string) (openvocab.VirtualField, error) {
	fields, err := e.synthesizer.Synthesize(ctx, record.HostType, record.Bundle)
	if err != nil {
		return nil, err
	}
	schema, ok := fields[fieldName]
	if !ok {
		return nil, openvocab.NewVirtualFieldNotFoundError(record.HostType, record.Bundle, fieldName)
	}
	if _, ok := record.Revision(schema.AnchorField.FieldName); !ok {
		return nil, openvocab.NewAnchorFieldNotFoundError(schema.AnchorField)
	}
	return newVirtualField(schema, record, e.knownResolver(ctx, record, schema.AnchorField.FieldName)), nil
}

// knownResolver looks up the associations of anchorField at write time, so a
// view never mistakes an association created after it for an orphan.
func (e *engine) knownResolver(ctx context.Context, record *openvocab.Record, anchorField string) knownResolver {
	if e.config.Projection.OrphanPolicy != openvocab.OrphanPolicyPurgeOnWrite {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	return func() (map[string]struct{}, error) {
		fields, err := e.synthesizer.Synthesize(ctx, record.HostType, record.Bundle)
		if err != nil {
			return nil, err
		}
		return knownAssociations(fields, anchorField), nil
	}
}

func (e *engine) GroupByAssociation(ctx context.Context, record *openvocab.Record, anchorField string) ([]openvocab.AssociationGroup, error) {
	fields, err := e.synthesizer.Synthesize(ctx, record.HostType, record.Bundle)
	if err != nil {
		return nil, err
	}
	return GroupByAssociation(ctx, record, anchorField, fields, e.providers, e.registry)
}

// PurgeOrphans removes the items of anchorField tagged with an association
// that is no longer configured on it, and returns how many were removed.
func (e *engine) PurgeOrphans(ctx context.Context, record *openvocab.Record, anchorField string) (int, error) {
	fields, err := e.synthesizer.Synthesize(ctx, record.HostType, record.Bundle)
	if err != nil {
		return 0, err
	}
	known := knownAssociations(fields, anchorField)

	purged := 0
	_, err = record.UpdateAnchor(anchorField, func(current []openvocab.ReferenceItem) ([]openvocab.ReferenceItem, error) {
		out := current[:0]
		for _, item := range current {
			if _, ok := known[item.AssociationID]; !ok {
				purged++
				continue
			}
			out = append(out, item)
		}
		return out, nil
	})
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		zap.S().Infow("purged orphaned items", "anchor", record.AnchorRef(anchorField).ID(), "record", record.ID, "count", purged)
	}
	return purged, nil
}

func (e *engine) PlaceVirtualFields(ctx context.Context, layout *openvocab.FormLayout, hostType, bundle string) error {
	fields, err := e.synthesizer.Synthesize(ctx, hostType, bundle)
	if err != nil {
		return err
	}
	return e.placement.Place(layout, fields)
}

func knownAssociations(fields openvocab.BundleFields, anchorField string) map[string]struct{} {
	known := make(map[string]struct{})
	for _, s := range fields.ForAnchor(anchorField) {
		known[s.AssociationID] = struct{}{}
	}
	return known
}
