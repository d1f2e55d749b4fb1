package internal

import (
	"context"
	"fmt"

	"github.com/lychee-technology/openvocab"
	"go.uber.org/zap"
)

// GroupByAssociation splits the physical value of an anchor field into one
// group per configured association, in association weight order. Items
// tagged with an association that is not configured on the anchor are
// skipped. When the target provider implements TargetChecker, targets it no
// longer knows are dropped as well.
func GroupByAssociation(ctx context.Context, record *openvocab.Record, anchorField string, fields openvocab.BundleFields, providers *TargetProviderRegistry, registry *AssociationRegistry) ([]openvocab.AssociationGroup, error) {
	physical, _, err := record.Anchor(anchorField)
	if err != nil {
		return nil, err
	}

	schemas := fields.ForAnchor(anchorField)
	byAssociation := make(map[string]*openvocab.VirtualFieldSchema, len(schemas))
	for _, s := range schemas {
		byAssociation[s.AssociationID] = s
	}

	targets := make(map[string][]string, len(schemas))
	for _, item := range physical {
		if item.IsEmpty() {
			continue
		}
		if _, ok := byAssociation[item.AssociationID]; !ok {
			zap.S().Debugw("skipping item with unknown association", "anchor", record.AnchorRef(anchorField).ID(), "association", item.AssociationID)
			continue
		}
		targets[item.AssociationID] = append(targets[item.AssociationID], item.TargetID)
	}

	groups := make([]openvocab.AssociationGroup, 0, len(targets))
	for _, s := range schemas {
		ids := targets[s.AssociationID]
		if len(ids) == 0 {
			continue
		}
		ids, err = existingTargets(ctx, s, ids, providers, registry)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			continue
		}
		groups = append(groups, openvocab.AssociationGroup{
			AssociationID: s.AssociationID,
			Label:         s.Label,
			Predicate:     s.Predicate,
			Weight:        s.AssociationWeight,
			TargetType:    s.TargetType,
			TargetIDs:     ids,
		})
	}
	return groups, nil
}

func existingTargets(ctx context.Context, s *openvocab.VirtualFieldSchema, ids []string, providers *TargetProviderRegistry, registry *AssociationRegistry) ([]string, error) {
	if providers == nil || registry == nil {
		return ids, nil
	}
	a, err := registry.Get(ctx, s.AssociationID)
	if err != nil {
		return nil, err
	}
	vocabulary, err := registry.Vocabulary(ctx, a.Vocabulary)
	if err != nil {
		return nil, err
	}
	provider, err := providers.Get(vocabulary.Handler)
	if err != nil {
		return nil, err
	}
	checker, ok := provider.(openvocab.TargetChecker)
	if !ok {
		return ids, nil
	}

	exists, err := checker.ExistingTargets(ctx, vocabulary.HandlerSettings, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check targets of %s: %w", s.AssociationID, err)
	}
	out := ids[:0]
	for _, id := range ids {
		if exists[id] {
			out = append(out, id)
		}
	}
	return out, nil
}
