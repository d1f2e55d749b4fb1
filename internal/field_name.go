package internal

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/lychee-technology/openvocab"
)

// fieldNameHashLength is the number of hex characters kept from the digest.
const fieldNameHashLength = 10

// DeriveFieldName returns the generated name of the virtual field projecting
// association onto anchor: the association machine name followed by a
// truncated SHA-256 of the association identity and the fully qualified
// anchor field identifier.
func DeriveFieldName(association *openvocab.Association, anchor openvocab.AnchorFieldRef) string {
	id := association.ID
	if id == "" {
		id = association.DerivedID()
	}
	sum := sha256.Sum256([]byte(id + "@" + anchor.ID()))
	return association.Name + "_" + hex.EncodeToString(sum[:])[:fieldNameHashLength]
}
