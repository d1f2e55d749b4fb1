package internal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lychee-technology/openvocab"
	"go.uber.org/zap"
)

// ChangeKind identifies a configuration mutation.
type ChangeKind string

const (
	ChangeAssociationCreated ChangeKind = "association_created"
	ChangeAssociationUpdated ChangeKind = "association_updated"
	ChangeAssociationDeleted ChangeKind = "association_deleted"
	ChangeVocabularyHandler  ChangeKind = "vocabulary_handler_changed"
)

// ChangeEvent is emitted after a configuration mutation has been persisted.
// Fields lists every anchor field whose derived schema may have changed.
type ChangeEvent struct {
	Kind          ChangeKind
	AssociationID string
	VocabularyID  string
	Fields        []string
}

// ChangeListener receives configuration change events.
type ChangeListener func(ChangeEvent)

// AssociationRegistry owns the ordered collection of associations. Every read
// goes to the configuration store so that ordering reflects what is persisted.
type AssociationRegistry struct {
	store openvocab.ConfigStore

	// createMu serializes weight allocation inside this process. Two
	// processes creating associations concurrently can still be handed the
	// same weight; the identity tie-break keeps ordering deterministic.
	createMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []ChangeListener
}

// NewAssociationRegistry creates a registry backed by store.
func NewAssociationRegistry(store openvocab.ConfigStore) *AssociationRegistry {
	return &AssociationRegistry{store: store}
}

// OnChange registers a listener called after each persisted mutation.
func (r *AssociationRegistry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *AssociationRegistry) emit(ev ChangeEvent) {
	r.listenersMu.RLock()
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// Sorted returns every association ordered by weight, then identity.
func (r *AssociationRegistry) Sorted(ctx context.Context) ([]*openvocab.Association, error) {
	list, err := r.store.ListAssociations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list associations: %w", err)
	}
	openvocab.SortAssociations(list)
	return list, nil
}

// ListByAnchorField returns the associations projecting onto anchorFieldID.
// If any of them references a missing vocabulary the whole listing fails with
// REGISTRY_INCONSISTENT; listings that do not include that entry are unaffected.
func (r *AssociationRegistry) ListByAnchorField(ctx context.Context, anchorFieldID string) ([]*openvocab.Association, error) {
	return r.filtered(ctx, func(a *openvocab.Association) bool {
		return a.HasField(anchorFieldID)
	})
}

// ListByVocabulary returns the associations using vocabularyID. It fails with
// REGISTRY_INCONSISTENT, returning no associations, when vocabularyID itself
// no longer exists but associations still reference it.
func (r *AssociationRegistry) ListByVocabulary(ctx context.Context, vocabularyID string) ([]*openvocab.Association, error) {
	return r.filtered(ctx, func(a *openvocab.Association) bool {
		return a.Vocabulary == vocabularyID
	})
}

// filtered keeps the associations matching keep and checks that each of them
// points at an existing vocabulary. A dangling vocabulary is a consistency
// error, never skipped.
func (r *AssociationRegistry) filtered(ctx context.Context, keep func(*openvocab.Association) bool) ([]*openvocab.Association, error) {
	all, err := r.Sorted(ctx)
	if err != nil {
		return nil, err
	}

	var out []*openvocab.Association
	for _, a := range all {
		if keep(a) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return out, nil
	}

	vocabularies, err := r.vocabularySet(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range out {
		if _, ok := vocabularies[a.Vocabulary]; !ok {
			zap.S().Warnw("association references missing vocabulary", "association", a.ID, "vocabulary", a.Vocabulary)
			return nil, openvocab.NewRegistryInconsistentError(a.ID, a.Vocabulary)
		}
	}
	return out, nil
}

func (r *AssociationRegistry) vocabularySet(ctx context.Context) (map[string]*openvocab.Vocabulary, error) {
	list, err := r.store.ListVocabularies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vocabularies: %w", err)
	}
	set := make(map[string]*openvocab.Vocabulary, len(list))
	for _, v := range list {
		set[v.ID] = v
	}
	return set, nil
}

// NextWeight returns the weight for a new association: one more than the
// heaviest existing association, never below zero so that negative weights
// stay available for pre-seeded associations.
func (r *AssociationRegistry) NextWeight(ctx context.Context) (int, error) {
	all, err := r.Sorted(ctx)
	if err != nil {
		return 0, err
	}
	return nextWeight(all), nil
}

func nextWeight(sorted []*openvocab.Association) int {
	if len(sorted) == 0 {
		return 0
	}
	last := sorted[len(sorted)-1].Weight
	if last < 0 {
		return 0
	}
	return last + 1
}

// Get loads one association.
func (r *AssociationRegistry) Get(ctx context.Context, id string) (*openvocab.Association, error) {
	return r.store.LoadAssociation(ctx, id)
}

// Vocabulary loads one vocabulary.
func (r *AssociationRegistry) Vocabulary(ctx context.Context, id string) (*openvocab.Vocabulary, error) {
	return r.store.LoadVocabulary(ctx, id)
}

// Vocabularies lists all vocabularies ordered by id.
func (r *AssociationRegistry) Vocabularies(ctx context.Context) ([]*openvocab.Vocabulary, error) {
	list, err := r.store.ListVocabularies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vocabularies: %w", err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Create assigns the identity and the next weight to a new association and persists it.
func (r *AssociationRegistry) Create(ctx context.Context, a *openvocab.Association) (*openvocab.Association, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if !a.IsNew() && a.ID != a.DerivedID() {
		return nil, openvocab.NewValidationError("id", "association id is derived from vocabulary and name")
	}
	if _, err := r.store.LoadVocabulary(ctx, a.Vocabulary); err != nil {
		return nil, err
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	created := a.Clone()
	created.ID = created.DerivedID()
	if _, err := r.store.LoadAssociation(ctx, created.ID); err == nil {
		return nil, openvocab.NewAssociationExistsError(created.ID)
	} else if !openvocab.IsCode(err, openvocab.ErrCodeAssociationNotFound) {
		return nil, err
	}

	weight, err := r.NextWeight(ctx)
	if err != nil {
		return nil, err
	}
	created.Weight = weight
	zap.S().Debugw("allocated association weight", "association", created.ID, "weight", weight)

	if err := r.store.SaveAssociation(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to save association %s: %w", created.ID, err)
	}

	r.emit(ChangeEvent{
		Kind:          ChangeAssociationCreated,
		AssociationID: created.ID,
		VocabularyID:  created.Vocabulary,
		Fields:        append([]string(nil), created.Fields...),
	})
	return created.Clone(), nil
}

// Update persists changes to an existing association. Identity is immutable:
// changing the vocabulary or the name means deleting and creating.
func (r *AssociationRegistry) Update(ctx context.Context, a *openvocab.Association) error {
	if a.IsNew() {
		return openvocab.NewValidationError("id", "cannot update an association without id")
	}
	if err := a.Validate(); err != nil {
		return err
	}
	previous, err := r.store.LoadAssociation(ctx, a.ID)
	if err != nil {
		return err
	}
	if _, err := r.store.LoadVocabulary(ctx, a.Vocabulary); err != nil {
		return err
	}
	if err := r.store.SaveAssociation(ctx, a.Clone()); err != nil {
		return fmt.Errorf("failed to save association %s: %w", a.ID, err)
	}

	r.emit(ChangeEvent{
		Kind:          ChangeAssociationUpdated,
		AssociationID: a.ID,
		VocabularyID:  a.Vocabulary,
		Fields:        unionFields(previous.Fields, a.Fields),
	})
	return nil
}

// Delete removes an association. Physical items still tagged with it are left
// untouched and become invisible to every virtual field.
func (r *AssociationRegistry) Delete(ctx context.Context, id string) error {
	previous, err := r.store.LoadAssociation(ctx, id)
	if err != nil {
		return err
	}
	if err := r.store.DeleteAssociation(ctx, id); err != nil {
		return fmt.Errorf("failed to delete association %s: %w", id, err)
	}
	r.emit(ChangeEvent{
		Kind:          ChangeAssociationDeleted,
		AssociationID: id,
		VocabularyID:  previous.Vocabulary,
		Fields:        append([]string(nil), previous.Fields...),
	})
	return nil
}

// SaveVocabulary persists a vocabulary. Changing the handler or its settings
// of an existing vocabulary emits a change for every anchor field of its associations.
func (r *AssociationRegistry) SaveVocabulary(ctx context.Context, v *openvocab.Vocabulary) error {
	if err := v.Validate(); err != nil {
		return err
	}
	previous, err := r.store.LoadVocabulary(ctx, v.ID)
	if err != nil && !openvocab.IsCode(err, openvocab.ErrCodeVocabularyNotFound) {
		return err
	}
	if err := r.store.SaveVocabulary(ctx, v.Clone()); err != nil {
		return fmt.Errorf("failed to save vocabulary %s: %w", v.ID, err)
	}
	if previous == nil || !previous.HandlerChanged(v) {
		return nil
	}

	affected, err := r.ListByVocabulary(ctx, v.ID)
	if err != nil {
		return err
	}
	var fields []string
	for _, a := range affected {
		fields = unionFields(fields, a.Fields)
	}
	r.emit(ChangeEvent{
		Kind:         ChangeVocabularyHandler,
		VocabularyID: v.ID,
		Fields:       fields,
	})
	return nil
}

// DeleteVocabulary removes a vocabulary that no association references.
func (r *AssociationRegistry) DeleteVocabulary(ctx context.Context, id string) error {
	if _, err := r.store.LoadVocabulary(ctx, id); err != nil {
		return err
	}
	users, err := r.ListByVocabulary(ctx, id)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		ids := make([]string, 0, len(users))
		for _, a := range users {
			ids = append(ids, a.ID)
		}
		return openvocab.NewVocabularyInUseError(id, ids)
	}
	if err := r.store.DeleteVocabulary(ctx, id); err != nil {
		return fmt.Errorf("failed to delete vocabulary %s: %w", id, err)
	}
	return nil
}

func unionFields(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, f := range list {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}
