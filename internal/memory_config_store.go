package internal

import (
	"context"
	"sort"
	"sync"

	"github.com/lychee-technology/openvocab"
)

// MemoryConfigStore keeps vocabulary and association configuration in memory.
// It also serves as the field introspector for bundles declared with DeclareField.
type MemoryConfigStore struct {
	mu           sync.RWMutex
	vocabularies map[string]*openvocab.Vocabulary
	associations map[string]*openvocab.Association
	fields       map[string][]openvocab.FieldDefinition
}

var (
	_ openvocab.ConfigStore       = (*MemoryConfigStore)(nil)
	_ openvocab.FieldIntrospector = (*MemoryConfigStore)(nil)
)

// NewMemoryConfigStore creates an empty store.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{
		vocabularies: make(map[string]*openvocab.Vocabulary),
		associations: make(map[string]*openvocab.Association),
		fields:       make(map[string][]openvocab.FieldDefinition),
	}
}

func (s *MemoryConfigStore) LoadVocabulary(_ context.Context, id string) (*openvocab.Vocabulary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vocabularies[id]
	if !ok {
		return nil, openvocab.NewVocabularyNotFoundError(id)
	}
	return v.Clone(), nil
}

func (s *MemoryConfigStore) ListVocabularies(_ context.Context) ([]*openvocab.Vocabulary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*openvocab.Vocabulary, 0, len(s.vocabularies))
	for _, v := range s.vocabularies {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryConfigStore) SaveVocabulary(_ context.Context, v *openvocab.Vocabulary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vocabularies[v.ID] = v.Clone()
	return nil
}

func (s *MemoryConfigStore) DeleteVocabulary(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vocabularies[id]; !ok {
		return openvocab.NewVocabularyNotFoundError(id)
	}
	delete(s.vocabularies, id)
	return nil
}

func (s *MemoryConfigStore) LoadAssociation(_ context.Context, id string) (*openvocab.Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.associations[id]
	if !ok {
		return nil, openvocab.NewAssociationNotFoundError(id)
	}
	return a.Clone(), nil
}

func (s *MemoryConfigStore) ListAssociations(_ context.Context) ([]*openvocab.Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*openvocab.Association, 0, len(s.associations))
	for _, a := range s.associations {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (s *MemoryConfigStore) SaveAssociation(_ context.Context, a *openvocab.Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.associations[a.ID] = a.Clone()
	return nil
}

func (s *MemoryConfigStore) DeleteAssociation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.associations[id]; !ok {
		return openvocab.NewAssociationNotFoundError(id)
	}
	delete(s.associations, id)
	return nil
}

// DeclareField attaches a physical field to a bundle.
func (s *MemoryConfigStore) DeclareField(def openvocab.FieldDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := schemaCacheKey(def.HostType, def.Bundle)
	for i, existing := range s.fields[key] {
		if existing.Name == def.Name {
			s.fields[key][i] = def
			return
		}
	}
	s.fields[key] = append(s.fields[key], def)
}

func (s *MemoryConfigStore) ListFields(_ context.Context, hostType, bundle string) ([]openvocab.FieldDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]openvocab.FieldDefinition(nil), s.fields[schemaCacheKey(hostType, bundle)]...), nil
}
