package internal

import (
	"slices"

	"github.com/lychee-technology/openvocab"
	"go.uber.org/zap"
)

// PlacementEngine positions synthesized virtual fields around their anchor
// field in a form layout and hides the anchor widget.
//
// A virtual field lands at anchorWeight + associationWeight/WeightDivisor.
// Association weights must stay within ±MaxAssociationWeight, otherwise the
// offset reaches the next integer slot and can interleave with unrelated
// components.
type PlacementEngine struct {
	cfg openvocab.PlacementConfig
}

// NewPlacementEngine creates a placement engine.
func NewPlacementEngine(cfg openvocab.PlacementConfig) *PlacementEngine {
	return &PlacementEngine{cfg: cfg}
}

// Weight returns the layout weight of a virtual field.
func (p *PlacementEngine) Weight(anchorWeight float64, associationWeight int) float64 {
	return anchorWeight + float64(associationWeight)/p.cfg.WeightDivisor
}

// Place merges fields into layout. Anchors without a component are skipped,
// so running Place twice on the same layout is a no-op the second time.
func (p *PlacementEngine) Place(layout *openvocab.FormLayout, fields openvocab.BundleFields) error {
	if layout == nil {
		return openvocab.NewValidationError("layout", "layout cannot be nil")
	}

	anchors := make(map[string][]*openvocab.VirtualFieldSchema)
	var anchorOrder []string
	for _, schema := range fields.Ordered() {
		name := schema.AnchorField.FieldName
		if _, seen := anchors[name]; !seen {
			anchorOrder = append(anchorOrder, name)
		}
		anchors[name] = append(anchors[name], schema)
	}

	// Check every weight before touching the layout so a failure leaves it intact.
	if p.cfg.StrictWeightRange {
		for _, schema := range fields.Ordered() {
			if err := p.checkWeight(schema); err != nil {
				return err
			}
		}
	}

	changed := false
	for _, anchorName := range anchorOrder {
		anchor, ok := layout.Component(anchorName)
		if !ok {
			zap.S().Debugw("anchor field not placed, skipping", "anchor", anchorName, "hostType", layout.HostType, "bundle", layout.Bundle)
			continue
		}

		groupName, group, inGroup := layout.GroupOf(anchorName)
		virtualNames := make([]string, 0, len(anchors[anchorName]))
		for _, schema := range anchors[anchorName] {
			if !p.cfg.StrictWeightRange {
				if err := p.checkWeight(schema); err != nil {
					zap.S().Warnw("association weight outside placement range", "association", schema.AssociationID, "weight", schema.AssociationWeight)
				}
			}

			component := &openvocab.LayoutComponent{
				Type:   schema.WidgetType,
				Weight: p.Weight(anchor.Weight, schema.AssociationWeight),
				Region: anchor.Region,
				Parent: anchor.Parent,
			}
			if inGroup {
				component.Parent = groupName
			}
			layout.SetComponent(schema.Name, component)
			virtualNames = append(virtualNames, schema.Name)
		}

		if inGroup {
			group.Children = replaceChild(group.Children, anchorName, virtualNames)
		}
		layout.RemoveComponent(anchorName)
		changed = true
	}

	if changed {
		layout.Mode = openvocab.LayoutModeCustom
	}
	return nil
}

func (p *PlacementEngine) checkWeight(schema *openvocab.VirtualFieldSchema) error {
	limit := p.cfg.MaxAssociationWeight
	if schema.AssociationWeight > limit || schema.AssociationWeight < -limit {
		return openvocab.NewWeightOutOfRangeError(schema.AssociationID, schema.AssociationWeight, limit)
	}
	return nil
}

// replaceChild substitutes anchor with names at the anchor's position,
// skipping names already present.
func replaceChild(children []string, anchor string, names []string) []string {
	out := make([]string, 0, len(children)+len(names))
	for _, child := range children {
		if child != anchor {
			out = append(out, child)
			continue
		}
		for _, name := range names {
			if !slices.Contains(children, name) {
				out = append(out, name)
			}
		}
	}
	return out
}
