package openvocab

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// CardinalityUnlimited marks an association that accepts any number of references.
const CardinalityUnlimited = -1

// MultiplexedFieldType is the field type of physical anchor fields.
const MultiplexedFieldType = "open_vocabulary_reference"

// AnchorFieldRef is the fully qualified reference to a physical multiplexed field.
type AnchorFieldRef struct {
	HostType  string `json:"host_type" yaml:"host_type"`
	Bundle    string `json:"bundle" yaml:"bundle"`
	FieldName string `json:"field_name" yaml:"field_name"`
}

// ID returns the "hostType.bundle.fieldName" identifier used in association configuration.
func (r AnchorFieldRef) ID() string {
	return r.HostType + "." + r.Bundle + "." + r.FieldName
}

// IsZero reports whether no part of the reference is set.
func (r AnchorFieldRef) IsZero() bool {
	return r.HostType == "" && r.Bundle == "" && r.FieldName == ""
}

func (r AnchorFieldRef) String() string {
	return r.ID()
}

// ParseAnchorFieldRef parses an identifier produced by AnchorFieldRef.ID.
func ParseAnchorFieldRef(id string) (AnchorFieldRef, error) {
	parts := strings.SplitN(id, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return AnchorFieldRef{}, NewValidationError("fields", fmt.Sprintf("invalid anchor field identifier %q", id))
	}
	return AnchorFieldRef{HostType: parts[0], Bundle: parts[1], FieldName: parts[2]}, nil
}

// Vocabulary is a typed pool of referenceable records. Handler names the
// TargetProvider that knows which records can be referenced; HandlerSettings
// are passed through to it untouched.
type Vocabulary struct {
	ID              string         `json:"id" yaml:"id"`
	Label           string         `json:"label" yaml:"label"`
	Description     string         `json:"description,omitempty" yaml:"description,omitempty"`
	Handler         string         `json:"handler" yaml:"handler"`
	HandlerSettings map[string]any `json:"handler_settings" yaml:"handler_settings"`
}

// Validate checks the vocabulary for missing mandatory attributes.
func (v *Vocabulary) Validate() error {
	if v == nil {
		return NewValidationError("vocabulary", "vocabulary cannot be nil")
	}
	if v.ID == "" {
		return NewValidationError("id", "vocabulary id is required")
	}
	if strings.Contains(v.ID, ".") {
		return NewValidationError("id", "vocabulary id cannot contain dots")
	}
	if v.Handler == "" {
		return NewValidationError("handler", "vocabulary handler is required").WithDetail("vocabulary", v.ID)
	}
	return nil
}

// Clone returns a deep enough copy to be handed to callers without sharing
// the settings map.
func (v *Vocabulary) Clone() *Vocabulary {
	if v == nil {
		return nil
	}
	c := *v
	c.HandlerSettings = cloneSettings(v.HandlerSettings)
	return &c
}

// HandlerChanged reports whether other uses a different handler or handler settings.
func (v *Vocabulary) HandlerChanged(other *Vocabulary) bool {
	if v == nil || other == nil {
		return v != other
	}
	if v.Handler != other.Handler {
		return true
	}
	return !settingsEqual(v.HandlerSettings, other.HandlerSettings)
}

// Association binds a vocabulary to one or more anchor fields. Its identity
// is "vocabulary.name" and is fixed when the association is first saved.
type Association struct {
	ID          string   `json:"id" yaml:"id"`
	Label       string   `json:"label" yaml:"label"`
	Name        string   `json:"name" yaml:"name"`
	Fields      []string `json:"fields" yaml:"fields"`
	WidgetType  string   `json:"widget_type" yaml:"widget_type"`
	Vocabulary  string   `json:"vocabulary" yaml:"vocabulary"`
	Cardinality int      `json:"cardinality" yaml:"cardinality"`
	Required    bool     `json:"required" yaml:"required"`
	Predicate   string   `json:"predicate" yaml:"predicate"`
	HelpText    string   `json:"help_text,omitempty" yaml:"help_text,omitempty"`
	Weight      int      `json:"weight" yaml:"weight"`
}

// DerivedID computes the identity from the vocabulary and machine name.
func (a *Association) DerivedID() string {
	return a.Vocabulary + "." + a.Name
}

// IsNew reports whether the association has not been assigned an identity yet.
func (a *Association) IsNew() bool {
	return a.ID == ""
}

// HasField reports whether the association projects onto the given anchor field.
func (a *Association) HasField(anchorFieldID string) bool {
	return slices.Contains(a.Fields, anchorFieldID)
}

// AnchorFields parses the configured field identifiers.
func (a *Association) AnchorFields() ([]AnchorFieldRef, error) {
	refs := make([]AnchorFieldRef, 0, len(a.Fields))
	for _, id := range a.Fields {
		ref, err := ParseAnchorFieldRef(id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// IsMultiple reports whether the association accepts more than one reference.
func (a *Association) IsMultiple() bool {
	return a.Cardinality == CardinalityUnlimited || a.Cardinality > 1
}

// Validate checks the association's own attributes. Whether the referenced
// vocabulary exists is checked by the registry.
func (a *Association) Validate() error {
	if a == nil {
		return NewValidationError("association", "association cannot be nil")
	}
	if a.Name == "" {
		return NewValidationError("name", "association name is required")
	}
	if strings.Contains(a.Name, ".") {
		return NewValidationError("name", "association name cannot contain dots")
	}
	if a.Vocabulary == "" {
		return NewValidationError("vocabulary", "association vocabulary is required")
	}
	if a.Cardinality != CardinalityUnlimited && a.Cardinality <= 0 {
		return NewInvalidCardinalityError(a.DerivedID(), a.Cardinality)
	}
	if !a.IsNew() && a.ID != a.DerivedID() {
		return NewValidationError("id", fmt.Sprintf("association id %q does not match %q", a.ID, a.DerivedID()))
	}
	seen := make(map[string]struct{}, len(a.Fields))
	for _, id := range a.Fields {
		if _, err := ParseAnchorFieldRef(id); err != nil {
			return err
		}
		if _, dup := seen[id]; dup {
			return NewValidationError("fields", fmt.Sprintf("anchor field %q listed twice", id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Clone returns a copy that does not share the field list.
func (a *Association) Clone() *Association {
	if a == nil {
		return nil
	}
	c := *a
	c.Fields = slices.Clone(a.Fields)
	return &c
}

// SortAssociations orders associations by weight, breaking ties by identity.
func SortAssociations(list []*Association) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Weight != list[j].Weight {
			return list[i].Weight < list[j].Weight
		}
		return list[i].ID < list[j].ID
	})
}

// ReferenceItem is one tuple of a physical multiplexed field.
type ReferenceItem struct {
	AssociationID string `json:"target_association_id"`
	TargetID      string `json:"target_id"`
}

// IsEmpty reports whether the tuple carries no reference. Only a tuple with
// both parts set is considered a value.
func (i ReferenceItem) IsEmpty() bool {
	return i.AssociationID == "" || i.TargetID == ""
}

// Validate rejects tuples where exactly one of the two parts is set.
func (i ReferenceItem) Validate() error {
	switch {
	case i.AssociationID == "" && i.TargetID == "":
		return nil
	case i.AssociationID == "":
		return NewIncompleteReferenceError("target_association_id", "no association provided").
			WithDetail("target_id", i.TargetID)
	case i.TargetID == "":
		return NewIncompleteReferenceError("target_id", "no target provided").
			WithDetail("target_association_id", i.AssociationID)
	}
	return nil
}

// VirtualItem is a reference exposed through a virtual field, with the
// association tag stripped.
type VirtualItem struct {
	TargetID string `json:"target_id"`
}

// Tag re-attaches an association identity.
func (v VirtualItem) Tag(associationID string) ReferenceItem {
	return ReferenceItem{AssociationID: associationID, TargetID: v.TargetID}
}

// VirtualFieldSchema describes a synthesized per-association field.
type VirtualFieldSchema struct {
	Name              string         `json:"name"`
	Label             string         `json:"label"`
	Description       string         `json:"description,omitempty"`
	Required          bool           `json:"required"`
	Cardinality       int            `json:"cardinality"`
	WidgetType        string         `json:"widget_type"`
	TargetType        string         `json:"target_type"`
	HandlerSettings   map[string]any `json:"handler_settings,omitempty"`
	Predicate         string         `json:"predicate,omitempty"`
	HostType          string         `json:"host_type"`
	Bundle            string         `json:"bundle"`
	AssociationID     string         `json:"association"`
	AssociationWeight int            `json:"association_weight"`
	AnchorField       AnchorFieldRef `json:"anchor_field"`
}

// IsMultiple reports whether the field accepts more than one item.
func (s *VirtualFieldSchema) IsMultiple() bool {
	return s.Cardinality == CardinalityUnlimited || s.Cardinality > 1
}

// BundleFields maps generated field names to their schemas.
type BundleFields map[string]*VirtualFieldSchema

// Ordered returns the schemas grouped by anchor field and ordered by
// association weight inside each group.
func (b BundleFields) Ordered() []*VirtualFieldSchema {
	out := make([]*VirtualFieldSchema, 0, len(b))
	for _, s := range b {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].AnchorField.FieldName, out[j].AnchorField.FieldName
		if ai != aj {
			return ai < aj
		}
		if out[i].AssociationWeight != out[j].AssociationWeight {
			return out[i].AssociationWeight < out[j].AssociationWeight
		}
		return out[i].AssociationID < out[j].AssociationID
	})
	return out
}

// ForAnchor returns the ordered schemas generated from one anchor field.
func (b BundleFields) ForAnchor(fieldName string) []*VirtualFieldSchema {
	var out []*VirtualFieldSchema
	for _, s := range b.Ordered() {
		if s.AnchorField.FieldName == fieldName {
			out = append(out, s)
		}
	}
	return out
}

// Clone copies the map so callers cannot mutate a cached instance.
func (b BundleFields) Clone() BundleFields {
	out := make(BundleFields, len(b))
	for k, v := range b {
		c := *v
		c.HandlerSettings = cloneSettings(v.HandlerSettings)
		out[k] = &c
	}
	return out
}

// FieldDefinition is a physical field attached to a bundle, as reported by
// the schema introspection collaborator.
type FieldDefinition struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	HostType string `json:"host_type" yaml:"host_type"`
	Bundle   string `json:"bundle" yaml:"bundle"`
}

// Ref returns the anchor reference of the field.
func (d FieldDefinition) Ref() AnchorFieldRef {
	return AnchorFieldRef{HostType: d.HostType, Bundle: d.Bundle, FieldName: d.Name}
}

// IsMultiplexed reports whether the field is a physical anchor field.
func (d FieldDefinition) IsMultiplexed() bool {
	return d.Type == MultiplexedFieldType
}

// AssociationGroup is the rendered content of one association on an anchor field.
type AssociationGroup struct {
	AssociationID string   `json:"association"`
	Label         string   `json:"label"`
	Predicate     string   `json:"predicate,omitempty"`
	Weight        int      `json:"weight"`
	TargetType    string   `json:"target_type"`
	TargetIDs     []string `json:"target_ids"`
}

func cloneSettings(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case map[string]any:
			out[k] = cloneSettings(t)
		case []any:
			out[k] = slices.Clone(t)
		case []string:
			out[k] = slices.Clone(t)
		default:
			out[k] = v
		}
	}
	return out
}

func settingsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	return fmt.Sprint(sortedSettings(a)) == fmt.Sprint(sortedSettings(b))
}

func sortedSettings(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out = append(out, k+"="+strings.Join(sortedSettings(nested), ","))
			continue
		}
		out = append(out, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(out)
	return out
}
