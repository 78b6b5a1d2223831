package core

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a collision-resistant random identifier with a readable
// prefix, e.g. "visitor_1f0c...". The dashless form keeps keys compact in
// storage and query strings.
func NewID(prefix string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return token
	}
	return prefix + "_" + token
}
