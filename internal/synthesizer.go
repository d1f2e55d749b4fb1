package internal

import (
	"context"
	"fmt"
	"sort"

	"github.com/lychee-technology/openvocab"
	"go.uber.org/zap"
)

// Synthesizer derives the virtual fields of a host bundle from the anchor
// fields attached to it and the associations projecting onto them.
type Synthesizer struct {
	registry  *AssociationRegistry
	fields    openvocab.FieldIntrospector
	providers *TargetProviderRegistry
	cache     *SchemaCache
}

// NewSynthesizer creates a synthesizer. A nil cache disables caching.
func NewSynthesizer(registry *AssociationRegistry, fields openvocab.FieldIntrospector, providers *TargetProviderRegistry, cache *SchemaCache) *Synthesizer {
	return &Synthesizer{
		registry:  registry,
		fields:    fields,
		providers: providers,
		cache:     cache,
	}
}

// Synthesize returns the virtual fields of (hostType, bundle) keyed by generated name.
func (s *Synthesizer) Synthesize(ctx context.Context, hostType, bundle string) (openvocab.BundleFields, error) {
	if s.cache != nil {
		if fields, ok := s.cache.Get(hostType, bundle); ok {
			return fields, nil
		}
	}

	var generation uint64
	if s.cache != nil {
		generation = s.cache.Generation()
	}

	fields, err := s.build(ctx, hostType, bundle)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && !s.cache.SetIfGeneration(hostType, bundle, fields, generation) {
		zap.S().Debugw("discarding schema synthesized before invalidation", "hostType", hostType, "bundle", bundle)
	}
	emitSynthesis(hostType, bundle, len(fields))
	return fields.Clone(), nil
}

// Invalidate drops cached schemas. Empty arguments act as wildcards.
func (s *Synthesizer) Invalidate(hostType, bundle string) {
	if s.cache == nil {
		return
	}
	zap.S().Debugw("invalidating synthesized schemas", "hostType", hostType, "bundle", bundle)
	s.cache.Invalidate(hostType, bundle)
}

// Lookup returns the schema of one generated field.
func (s *Synthesizer) Lookup(ctx context.Context, hostType, bundle, name string) (*openvocab.VirtualFieldSchema, error) {
	fields, err := s.Synthesize(ctx, hostType, bundle)
	if err != nil {
		return nil, err
	}
	schema, ok := fields[name]
	if !ok {
		return nil, openvocab.NewVirtualFieldNotFoundError(hostType, bundle, name)
	}
	return schema, nil
}

func (s *Synthesizer) build(ctx context.Context, hostType, bundle string) (openvocab.BundleFields, error) {
	anchors, err := s.anchorFields(ctx, hostType, bundle)
	if err != nil {
		return nil, err
	}

	out := make(openvocab.BundleFields)
	owner := make(map[string]string)
	for _, anchor := range anchors {
		associations, err := s.registry.ListByAnchorField(ctx, anchor.ID())
		if err != nil {
			return nil, err
		}
		for _, a := range associations {
			schema, err := s.schemaFor(ctx, a, anchor)
			if err != nil {
				return nil, err
			}
			pair := a.ID + "@" + anchor.ID()
			if prev, taken := owner[schema.Name]; taken {
				zap.S().Errorw("virtual field name collision", "name", schema.Name, "first", prev, "second", pair)
				return nil, openvocab.NewFieldNameCollisionError(schema.Name, prev, pair)
			}
			owner[schema.Name] = pair
			out[schema.Name] = schema
		}
	}
	return out, nil
}

func (s *Synthesizer) anchorFields(ctx context.Context, hostType, bundle string) ([]openvocab.AnchorFieldRef, error) {
	defs, err := s.fields.ListFields(ctx, hostType, bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields of %s.%s: %w", hostType, bundle, err)
	}
	var refs []openvocab.AnchorFieldRef
	for _, d := range defs {
		if !d.IsMultiplexed() {
			continue
		}
		ref := d.Ref()
		// Introspectors may omit the owner on bundle-scoped listings.
		if ref.HostType == "" {
			ref.HostType = hostType
		}
		if ref.Bundle == "" {
			ref.Bundle = bundle
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].FieldName < refs[j].FieldName })
	return refs, nil
}

func (s *Synthesizer) schemaFor(ctx context.Context, a *openvocab.Association, anchor openvocab.AnchorFieldRef) (*openvocab.VirtualFieldSchema, error) {
	vocabulary, err := s.registry.Vocabulary(ctx, a.Vocabulary)
	if err != nil {
		if openvocab.IsCode(err, openvocab.ErrCodeVocabularyNotFound) {
			return nil, openvocab.NewRegistryInconsistentError(a.ID, a.Vocabulary)
		}
		return nil, err
	}
	provider, err := s.providers.Get(vocabulary.Handler)
	if err != nil {
		return nil, err
	}
	return &openvocab.VirtualFieldSchema{
		Name:              DeriveFieldName(a, anchor),
		Label:             a.Label,
		Description:       a.HelpText,
		Required:          a.Required,
		Cardinality:       a.Cardinality,
		WidgetType:        a.WidgetType,
		TargetType:        provider.ResolveType(),
		HandlerSettings:   provider.BuildSelector(vocabulary.HandlerSettings).Settings,
		Predicate:         a.Predicate,
		HostType:          anchor.HostType,
		Bundle:            anchor.Bundle,
		AssociationID:     a.ID,
		AssociationWeight: a.Weight,
		AnchorField:       anchor,
	}, nil
}
