package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lychee-technology/openvocab"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	vocabulariesDir = "vocabularies"
	associationsDir = "associations"
	fieldsDir       = "fields"
)

// FileConfigStore keeps configuration as one file per record under a root
// directory:
//
//	vocabularies/<id>.json|yaml
//	associations/<vocabulary>.<name>.json|yaml
//	fields/<hostType>.<bundle>.json|yaml   (list of FieldDefinition)
//
// Files are read in either format; writes always produce JSON.
type FileConfigStore struct {
	mu  sync.RWMutex
	dir string
}

var (
	_ openvocab.ConfigStore       = (*FileConfigStore)(nil)
	_ openvocab.FieldIntrospector = (*FileConfigStore)(nil)
)

// NewFileConfigStore opens dir, creating the record directories when missing.
func NewFileConfigStore(dir string) (*FileConfigStore, error) {
	for _, sub := range []string{vocabulariesDir, associationsDir, fieldsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create config directory %s: %w", sub, err)
		}
	}
	return &FileConfigStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileConfigStore) Dir() string {
	return s.dir
}

func (s *FileConfigStore) LoadVocabulary(_ context.Context, id string) (*openvocab.Vocabulary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var v openvocab.Vocabulary
	found, err := s.readRecord(vocabulariesDir, id, &v)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, openvocab.NewVocabularyNotFoundError(id)
	}
	if v.ID == "" {
		v.ID = id
	}
	return &v, nil
}

func (s *FileConfigStore) ListVocabularies(_ context.Context) ([]*openvocab.Vocabulary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*openvocab.Vocabulary
	err := s.eachRecord(vocabulariesDir, func(id, path string) error {
		var v openvocab.Vocabulary
		if err := decodeFile(path, &v); err != nil {
			return err
		}
		if v.ID == "" {
			v.ID = id
		}
		out = append(out, &v)
		return nil
	})
	return out, err
}

func (s *FileConfigStore) SaveVocabulary(_ context.Context, v *openvocab.Vocabulary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRecord(vocabulariesDir, v.ID, v)
}

func (s *FileConfigStore) DeleteVocabulary(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, err := s.removeRecord(vocabulariesDir, id)
	if err != nil {
		return err
	}
	if !removed {
		return openvocab.NewVocabularyNotFoundError(id)
	}
	return nil
}

func (s *FileConfigStore) LoadAssociation(_ context.Context, id string) (*openvocab.Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var a openvocab.Association
	found, err := s.readRecord(associationsDir, id, &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, openvocab.NewAssociationNotFoundError(id)
	}
	if a.ID == "" {
		a.ID = id
	}
	return &a, nil
}

func (s *FileConfigStore) ListAssociations(_ context.Context) ([]*openvocab.Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*openvocab.Association
	err := s.eachRecord(associationsDir, func(id, path string) error {
		var a openvocab.Association
		if err := decodeFile(path, &a); err != nil {
			return err
		}
		if a.ID == "" {
			a.ID = id
		}
		out = append(out, &a)
		return nil
	})
	return out, err
}

func (s *FileConfigStore) SaveAssociation(_ context.Context, a *openvocab.Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRecord(associationsDir, a.ID, a)
}

func (s *FileConfigStore) DeleteAssociation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, err := s.removeRecord(associationsDir, id)
	if err != nil {
		return err
	}
	if !removed {
		return openvocab.NewAssociationNotFoundError(id)
	}
	return nil
}

// ListFields reads fields/<hostType>.<bundle>. A bundle without a file has no fields.
func (s *FileConfigStore) ListFields(_ context.Context, hostType, bundle string) ([]openvocab.FieldDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var defs []openvocab.FieldDefinition
	if _, err := s.readRecord(fieldsDir, hostType+"."+bundle, &defs); err != nil {
		return nil, err
	}
	for i := range defs {
		if defs[i].HostType == "" {
			defs[i].HostType = hostType
		}
		if defs[i].Bundle == "" {
			defs[i].Bundle = bundle
		}
	}
	return defs, nil
}

// SaveFields writes the field list of a bundle.
func (s *FileConfigStore) SaveFields(hostType, bundle string, defs []openvocab.FieldDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRecord(fieldsDir, hostType+"."+bundle, defs)
}

var recordExtensions = []string{".json", ".yaml", ".yml"}

func (s *FileConfigStore) recordPath(kind, id string) (string, bool) {
	for _, ext := range recordExtensions {
		path := filepath.Join(s.dir, kind, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func (s *FileConfigStore) readRecord(kind, id string, out any) (bool, error) {
	if err := checkRecordID(id); err != nil {
		return false, err
	}
	path, ok := s.recordPath(kind, id)
	if !ok {
		return false, nil
	}
	if err := decodeFile(path, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileConfigStore) writeRecord(kind, id string, value any) error {
	if err := checkRecordID(id); err != nil {
		return err
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return openvocab.NewStoreError(fmt.Sprintf("failed to encode %s/%s", kind, id), err)
	}
	path := filepath.Join(s.dir, kind, id+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return openvocab.NewStoreError(fmt.Sprintf("failed to write %s", path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return openvocab.NewStoreError(fmt.Sprintf("failed to replace %s", path), err)
	}
	// Drop stale YAML copies of the record.
	for _, ext := range recordExtensions[1:] {
		_ = os.Remove(filepath.Join(s.dir, kind, id+ext))
	}
	return nil
}

func (s *FileConfigStore) removeRecord(kind, id string) (bool, error) {
	if err := checkRecordID(id); err != nil {
		return false, err
	}
	removed := false
	for _, ext := range recordExtensions {
		err := os.Remove(filepath.Join(s.dir, kind, id+ext))
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return removed, openvocab.NewStoreError(fmt.Sprintf("failed to delete %s/%s", kind, id), err)
		}
	}
	return removed, nil
}

func (s *FileConfigStore) eachRecord(kind string, fn func(id, path string) error) error {
	entries, err := os.ReadDir(filepath.Join(s.dir, kind))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return openvocab.NewStoreError(fmt.Sprintf("failed to read %s directory", kind), err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	seen := make(map[string]string)
	for _, name := range names {
		ext := filepath.Ext(name)
		if !isRecordExtension(ext) {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		if prev, dup := seen[id]; dup {
			zap.S().Warnw("duplicate config record, keeping first", "kind", kind, "id", id, "kept", prev, "ignored", name)
			continue
		}
		seen[id] = name
		if err := fn(id, filepath.Join(s.dir, kind, name)); err != nil {
			return err
		}
	}
	return nil
}

func isRecordExtension(ext string) bool {
	for _, e := range recordExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func checkRecordID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return openvocab.NewValidationError("id", fmt.Sprintf("invalid record id %q", id))
	}
	return nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return openvocab.NewStoreError(fmt.Sprintf("failed to read %s", path), err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, out)
	default:
		err = json.Unmarshal(data, out)
	}
	if err != nil {
		return openvocab.NewStoreError(fmt.Sprintf("failed to parse %s", path), err)
	}
	return nil
}
