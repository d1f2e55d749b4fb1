package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/lychee-technology/openvocab"
	"github.com/stretchr/testify/assert"
)

func TestDeriveFieldName(t *testing.T) {
	a := &openvocab.Association{ID: "topics.tags", Vocabulary: "topics", Name: "tags"}
	article := openvocab.AnchorFieldRef{HostType: "node", Bundle: "article", FieldName: "field_refs"}
	page := openvocab.AnchorFieldRef{HostType: "node", Bundle: "page", FieldName: "field_refs"}

	name := DeriveFieldName(a, article)
	assert.Regexp(t, regexp.MustCompile(`^tags_[0-9a-f]{10}$`), name)
	sum := sha256.Sum256([]byte("topics.tags@node.article.field_refs"))
	assert.Equal(t, "tags_"+hex.EncodeToString(sum[:])[:10], name)
	assert.Equal(t, name, DeriveFieldName(a, article), "derivation must be deterministic")
	assert.NotEqual(t, name, DeriveFieldName(a, page), "same association on another anchor gets another name")
}

func TestDeriveFieldNameDistinguishesVocabularies(t *testing.T) {
	anchor := openvocab.AnchorFieldRef{HostType: "node", Bundle: "article", FieldName: "field_refs"}
	topics := &openvocab.Association{ID: "topics.tags", Vocabulary: "topics", Name: "tags"}
	people := &openvocab.Association{ID: "people.tags", Vocabulary: "people", Name: "tags"}
	assert.NotEqual(t, DeriveFieldName(topics, anchor), DeriveFieldName(people, anchor))
}

func TestDeriveFieldNameUsesDerivedIDForNewAssociations(t *testing.T) {
	anchor := openvocab.AnchorFieldRef{HostType: "node", Bundle: "article", FieldName: "field_refs"}
	unsaved := &openvocab.Association{Vocabulary: "topics", Name: "tags"}
	saved := &openvocab.Association{ID: "topics.tags", Vocabulary: "topics", Name: "tags"}
	assert.Equal(t, DeriveFieldName(saved, anchor), DeriveFieldName(unsaved, anchor))
}
