package openvocab

import (
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Record is one host record instance and the physical values of its anchor
// fields. The physical lists are owned by the record: edits go through
// virtual fields, and SetAnchor is meant for hydrating a record loaded from
// storage.
type Record struct {
	ID       uuid.UUID `json:"id"`
	HostType string    `json:"host_type"`
	Bundle   string    `json:"bundle"`

	mu      sync.RWMutex
	anchors map[string]*anchorValue
}

type anchorValue struct {
	items    []ReferenceItem
	revision uint64
}

// NewRecord creates a record with a fresh identifier and the given anchor fields declared.
func NewRecord(hostType, bundle string, anchorFields ...string) *Record {
	r := &Record{
		ID:       uuid.New(),
		HostType: hostType,
		Bundle:   bundle,
		anchors:  make(map[string]*anchorValue, len(anchorFields)),
	}
	for _, f := range anchorFields {
		r.anchors[f] = &anchorValue{}
	}
	return r
}

// DeclareAnchor adds an anchor field with an empty value. Declaring an
// existing field is a no-op.
func (r *Record) DeclareAnchor(field string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.anchors == nil {
		r.anchors = make(map[string]*anchorValue)
	}
	if _, ok := r.anchors[field]; !ok {
		r.anchors[field] = &anchorValue{}
	}
}

// AnchorFields lists the declared anchor fields in name order.
func (r *Record) AnchorFields() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.anchors))
	for f := range r.anchors {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// AnchorRef returns the fully qualified reference of one of the record's anchor fields.
func (r *Record) AnchorRef(field string) AnchorFieldRef {
	return AnchorFieldRef{HostType: r.HostType, Bundle: r.Bundle, FieldName: field}
}

// Anchor returns a copy of the physical value of field and its revision.
// The revision changes every time the value is replaced.
func (r *Record) Anchor(field string) ([]ReferenceItem, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.anchors[field]
	if !ok {
		return nil, 0, NewAnchorFieldNotFoundError(r.AnchorRef(field))
	}
	return slices.Clone(v.items), v.revision, nil
}

// Revision returns the current revision of field.
func (r *Record) Revision(field string) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.anchors[field]
	if !ok {
		return 0, false
	}
	return v.revision, true
}

// SetAnchor replaces the physical value of field. Incomplete tuples are
// rejected and empty tuples dropped.
func (r *Record) SetAnchor(field string, items []ReferenceItem) error {
	_, err := r.UpdateAnchor(field, func([]ReferenceItem) ([]ReferenceItem, error) {
		return items, nil
	})
	return err
}

// UpdateAnchor runs fn against the current physical value of field and
// stores its result as one replace, returning the new revision. No reader
// observes an intermediate list: the record stays write-locked from the read
// until the replace. A failing fn or an invalid tuple leaves the value as is.
func (r *Record) UpdateAnchor(field string, fn func(current []ReferenceItem) ([]ReferenceItem, error)) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.anchors[field]
	if !ok {
		return 0, NewAnchorFieldNotFoundError(r.AnchorRef(field))
	}
	next, err := fn(slices.Clone(v.items))
	if err != nil {
		return v.revision, err
	}
	cleaned := make([]ReferenceItem, 0, len(next))
	for _, item := range next {
		if err := item.Validate(); err != nil {
			return v.revision, err
		}
		if item.IsEmpty() {
			continue
		}
		cleaned = append(cleaned, item)
	}
	v.items = cleaned
	v.revision++
	return v.revision, nil
}
