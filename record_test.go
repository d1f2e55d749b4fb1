package openvocab

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAnchor(t *testing.T) {
	r := NewRecord("node", "article", "field_refs")
	assert.Equal(t, []string{"field_refs"}, r.AnchorFields())

	items, rev, err := r.Anchor("field_refs")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, uint64(0), rev)

	_, _, err = r.Anchor("missing")
	assert.True(t, IsCode(err, ErrCodeAnchorFieldNotFound))
}

func TestRecordSetAnchorDropsEmptyItems(t *testing.T) {
	r := NewRecord("node", "article", "field_refs")
	err := r.SetAnchor("field_refs", []ReferenceItem{
		{AssociationID: "v.a", TargetID: "1"},
		{},
		{AssociationID: "v.b", TargetID: "2"},
	})
	require.NoError(t, err)

	items, rev, err := r.Anchor("field_refs")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rev)
	assert.Equal(t, []ReferenceItem{{AssociationID: "v.a", TargetID: "1"}, {AssociationID: "v.b", TargetID: "2"}}, items)
}

func TestRecordSetAnchorRejectsIncompleteTuple(t *testing.T) {
	r := NewRecord("node", "article", "field_refs")
	require.NoError(t, r.SetAnchor("field_refs", []ReferenceItem{{AssociationID: "v.a", TargetID: "1"}}))

	err := r.SetAnchor("field_refs", []ReferenceItem{{TargetID: "2"}})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeIncompleteReference))

	items, rev, _ := r.Anchor("field_refs")
	assert.Equal(t, uint64(1), rev)
	assert.Len(t, items, 1)
}

func TestRecordUpdateAnchorFailureKeepsValue(t *testing.T) {
	r := NewRecord("node", "article", "field_refs")
	require.NoError(t, r.SetAnchor("field_refs", []ReferenceItem{{AssociationID: "v.a", TargetID: "1"}}))

	boom := errors.New("boom")
	rev, err := r.UpdateAnchor("field_refs", func(current []ReferenceItem) ([]ReferenceItem, error) {
		current[0].TargetID = "mutated"
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), rev)

	items, _, _ := r.Anchor("field_refs")
	assert.Equal(t, "1", items[0].TargetID)
}

func TestRecordAnchorReturnsCopy(t *testing.T) {
	r := NewRecord("node", "article", "field_refs")
	require.NoError(t, r.SetAnchor("field_refs", []ReferenceItem{{AssociationID: "v.a", TargetID: "1"}}))

	items, _, _ := r.Anchor("field_refs")
	items[0].TargetID = "changed"

	again, _, _ := r.Anchor("field_refs")
	assert.Equal(t, "1", again[0].TargetID)
}

func TestRecordDeclareAnchor(t *testing.T) {
	r := &Record{HostType: "node", Bundle: "page"}
	r.DeclareAnchor("field_b")
	r.DeclareAnchor("field_a")
	r.DeclareAnchor("field_a")
	assert.Equal(t, []string{"field_a", "field_b"}, r.AnchorFields())
	assert.Equal(t, "node.page.field_a", r.AnchorRef("field_a").ID())
}
