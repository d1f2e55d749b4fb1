package openvocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(ids ...string) []VirtualItem {
	out := make([]VirtualItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, VirtualItem{TargetID: id})
	}
	return out
}

func TestVirtualFieldSchemaJSONSchema(t *testing.T) {
	s := &VirtualFieldSchema{Name: "tags_0123456789", Label: "Tags", Cardinality: 2, Required: true}
	schema := s.JSONSchema()

	assert.Equal(t, "array", schema.Type)
	require.NotNil(t, schema.MaxItems)
	assert.Equal(t, 2, *schema.MaxItems)
	require.NotNil(t, schema.MinItems)
	assert.Equal(t, 1, *schema.MinItems)
	assert.Equal(t, []string{"target_id"}, schema.Items.Required)

	unlimited := &VirtualFieldSchema{Name: "x", Cardinality: CardinalityUnlimited}
	assert.Nil(t, unlimited.JSONSchema().MaxItems)
	assert.Nil(t, unlimited.JSONSchema().MinItems)
}

func TestVirtualFieldSchemaValidateItems(t *testing.T) {
	tests := []struct {
		name        string
		cardinality int
		required    bool
		items       []VirtualItem
		wantCode    string
	}{
		{name: "within cardinality", cardinality: 2, items: items("1", "2")},
		{name: "over cardinality", cardinality: 1, items: items("1", "2"), wantCode: ErrCodeCardinalityExceeded},
		{name: "unlimited", cardinality: CardinalityUnlimited, items: items("1", "2", "3", "4")},
		{name: "required and empty", cardinality: 1, required: true, wantCode: ErrCodeRequiredFieldMissing},
		{name: "optional and empty", cardinality: 1},
		{name: "blank target", cardinality: CardinalityUnlimited, items: items(""), wantCode: ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &VirtualFieldSchema{Name: "f", Label: "F", AssociationID: "v.f", Cardinality: tt.cardinality, Required: tt.required}
			err := s.ValidateItems(tt.items)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsCode(err, tt.wantCode), "got %v", err)
		})
	}
}
