package internal

import (
	"fmt"
	"slices"
	"sync"

	"github.com/lychee-technology/openvocab"
	"go.uber.org/zap"
)

// virtualField is the view of one association's items on one record's
// anchor field. Reads are recomputed lazily from the anchor value; every
// mutation is written back to the anchor as one replace.
type virtualField struct {
	schema *openvocab.VirtualFieldSchema
	record *openvocab.Record

	// known resolves the associations currently configured on the anchor
	// field. Nil unless orphans are purged on write.
	known knownResolver

	mu       sync.Mutex
	items    []openvocab.VirtualItem
	revision uint64
	computed bool
}

var _ openvocab.VirtualField = (*virtualField)(nil)

type knownResolver func() (map[string]struct{}, error)

func newVirtualField(schema *openvocab.VirtualFieldSchema, record *openvocab.Record, known knownResolver) *virtualField {
	return &virtualField{
		schema: schema,
		record: record,
		known:  known,
	}
}

func (f *virtualField) Schema() *openvocab.VirtualFieldSchema {
	return f.schema
}

func (f *virtualField) anchorName() string {
	return f.schema.AnchorField.FieldName
}

func (f *virtualField) Items() ([]openvocab.VirtualItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.current()
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

func (f *virtualField) TargetIDs() ([]string, error) {
	items, err := f.Items()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.TargetID)
	}
	return ids, nil
}

func (f *virtualField) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.computed = false
}

// current returns the cached projection, recomputing it when the anchor
// revision moved since the last computation. Callers hold f.mu.
func (f *virtualField) current() ([]openvocab.VirtualItem, error) {
	if f.computed {
		rev, ok := f.record.Revision(f.anchorName())
		if !ok {
			return nil, openvocab.NewAnchorFieldNotFoundError(f.schema.AnchorField)
		}
		if rev == f.revision {
			return f.items, nil
		}
	}

	physical, rev, err := f.record.Anchor(f.anchorName())
	if err != nil {
		return nil, err
	}
	f.items = project(physical, f.schema.AssociationID)
	f.revision = rev
	f.computed = true
	emitRecompute(f.schema.AssociationID, len(f.items))
	return f.items, nil
}

// project is a stable filter of the physical items tagged with associationID,
// with the tag stripped.
func project(physical []openvocab.ReferenceItem, associationID string) []openvocab.VirtualItem {
	out := make([]openvocab.VirtualItem, 0, len(physical))
	for _, item := range physical {
		if item.IsEmpty() || item.AssociationID != associationID {
			continue
		}
		out = append(out, openvocab.VirtualItem{TargetID: item.TargetID})
	}
	return out
}

func (f *virtualField) Set(items []openvocab.VirtualItem) error {
	return f.mutate("set", func([]openvocab.VirtualItem) ([]openvocab.VirtualItem, error) {
		return slices.Clone(items), nil
	})
}

func (f *virtualField) SetTargetIDs(ids ...string) error {
	items := make([]openvocab.VirtualItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, openvocab.VirtualItem{TargetID: id})
	}
	return f.mutate("set", func([]openvocab.VirtualItem) ([]openvocab.VirtualItem, error) {
		return items, nil
	})
}

func (f *virtualField) Append(item openvocab.VirtualItem) error {
	return f.mutate("append", func(current []openvocab.VirtualItem) ([]openvocab.VirtualItem, error) {
		return append(current, item), nil
	})
}

func (f *virtualField) Remove(index int) error {
	return f.mutate("remove", func(current []openvocab.VirtualItem) ([]openvocab.VirtualItem, error) {
		if err := f.checkIndex(index, len(current)); err != nil {
			return nil, err
		}
		return slices.Delete(current, index, index+1), nil
	})
}

func (f *virtualField) SetTarget(index int, targetID string) error {
	return f.mutate("set_target", func(current []openvocab.VirtualItem) ([]openvocab.VirtualItem, error) {
		if err := f.checkIndex(index, len(current)); err != nil {
			return nil, err
		}
		current[index].TargetID = targetID
		return current, nil
	})
}

func (f *virtualField) Filter(keep func(index int, item openvocab.VirtualItem) bool) error {
	return f.mutate("filter", func(current []openvocab.VirtualItem) ([]openvocab.VirtualItem, error) {
		out := make([]openvocab.VirtualItem, 0, len(current))
		for i, item := range current {
			if keep(i, item) {
				out = append(out, item)
			}
		}
		return out, nil
	})
}

func (f *virtualField) Validate() error {
	items, err := f.Items()
	if err != nil {
		return err
	}
	return f.schema.ValidateItems(items)
}

func (f *virtualField) checkIndex(index, length int) error {
	if index >= 0 && index < length {
		return nil
	}
	return openvocab.NewError(openvocab.ErrorTypeValidation, openvocab.ErrCodeItemIndexOutOfBounds,
		fmt.Sprintf("item index %d out of range [0,%d)", index, length)).
		WithField(f.schema.Name).
		WithDetail("association", f.schema.AssociationID)
}

// mutate applies fn to a private copy of the current items and writes the
// result back. The cached projection only changes once the write succeeded.
func (f *virtualField) mutate(op string, fn func(current []openvocab.VirtualItem) ([]openvocab.VirtualItem, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.current()
	if err != nil {
		return err
	}
	next, err := fn(slices.Clone(current))
	if err != nil {
		return err
	}
	if err := f.checkTargets(next); err != nil {
		return err
	}

	var known map[string]struct{}
	if f.known != nil {
		if known, err = f.known(); err != nil {
			return err
		}
	}

	purged := 0
	rev, err := f.record.UpdateAnchor(f.anchorName(), func(physical []openvocab.ReferenceItem) ([]openvocab.ReferenceItem, error) {
		var out []openvocab.ReferenceItem
		out, purged = f.writeBack(physical, next, known)
		return out, nil
	})
	if err != nil {
		zap.S().Warnw("virtual field write-back failed", "field", f.schema.Name, "association", f.schema.AssociationID, "op", op, "error", err)
		return err
	}
	if purged > 0 {
		zap.S().Infow("purged orphaned items on write", "anchor", f.schema.AnchorField.ID(), "count", purged)
	}

	f.items = next
	f.revision = rev
	f.computed = true
	emitWriteBack(f.schema.AssociationID, op)
	return nil
}

// writeBack drops every item of this association from physical, then appends
// next tagged with the association, as a contiguous block at the end. With a
// non-nil known set, items of associations outside it are dropped too.
func (f *virtualField) writeBack(physical []openvocab.ReferenceItem, next []openvocab.VirtualItem, known map[string]struct{}) ([]openvocab.ReferenceItem, int) {
	out := make([]openvocab.ReferenceItem, 0, len(physical)+len(next))
	purged := 0
	for _, item := range physical {
		if item.AssociationID == f.schema.AssociationID {
			continue
		}
		if known != nil {
			if _, ok := known[item.AssociationID]; !ok {
				purged++
				continue
			}
		}
		out = append(out, item)
	}
	for _, item := range next {
		out = append(out, item.Tag(f.schema.AssociationID))
	}
	return out, purged
}

// checkTargets rejects items without a target; a tag alone is not a reference.
func (f *virtualField) checkTargets(items []openvocab.VirtualItem) error {
	for i, item := range items {
		if item.TargetID == "" {
			return openvocab.NewIncompleteReferenceError(f.schema.Name, fmt.Sprintf("item %d has no target", i)).
				WithDetail("association", f.schema.AssociationID)
		}
	}
	return nil
}
