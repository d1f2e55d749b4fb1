package openvocab

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// JSONSchema renders the virtual field as a JSON Schema describing its
// editable value: an array of {"target_id": string} objects bounded by the
// field's cardinality and required flag.
func (s *VirtualFieldSchema) JSONSchema() *jsonschema.Schema {
	minTargetLen := 1
	item := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"target_id": {
				Type:      "string",
				MinLength: &minTargetLen,
			},
		},
		Required: []string{"target_id"},
	}

	schema := &jsonschema.Schema{
		Title:       s.Label,
		Description: s.Description,
		Type:        "array",
		Items:       item,
	}
	if s.Cardinality != CardinalityUnlimited {
		maxItems := s.Cardinality
		schema.MaxItems = &maxItems
	}
	if s.Required {
		minItems := 1
		schema.MinItems = &minItems
	}
	return schema
}

// ValidateItems checks items against the field's JSON Schema.
func (s *VirtualFieldSchema) ValidateItems(items []VirtualItem) error {
	resolved, err := s.JSONSchema().Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return NewInternalError("failed to resolve virtual field schema", err)
	}

	instance := make([]any, 0, len(items))
	for _, item := range items {
		instance = append(instance, map[string]any{"target_id": item.TargetID})
	}

	verr := resolved.Validate(instance)
	if verr == nil {
		return nil
	}

	switch {
	case s.Required && len(items) == 0:
		return &Error{
			Type:    ErrorTypeValidation,
			Code:    ErrCodeRequiredFieldMissing,
			Message: fmt.Sprintf("%s field is required", s.Label),
			Field:   s.Name,
			Cause:   verr,
			Details: map[string]any{"association": s.AssociationID},
		}
	case s.Cardinality != CardinalityUnlimited && len(items) > s.Cardinality:
		return &Error{
			Type:    ErrorTypeValidation,
			Code:    ErrCodeCardinalityExceeded,
			Message: fmt.Sprintf("%s: this field cannot hold more than %d values", s.Label, s.Cardinality),
			Field:   s.Name,
			Cause:   verr,
			Details: map[string]any{"association": s.AssociationID, "count": len(items)},
		}
	default:
		return NewValidationError(s.Name, verr.Error()).WithCause(verr)
	}
}
