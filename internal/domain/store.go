package domain

import (
	"fmt"
	"strings"
)

// StoreType identifies a digital storefront.
type StoreType string

// Known storefronts.
const (
	StoreSwitch StoreType = "switch"
)

// platformLabels maps a storefront to the platform label used by wishlists.
var platformLabels = map[StoreType]string{
	StoreSwitch: "Nintendo Switch",
}

// Platform returns the wishlist platform label served by the storefront, or
// "" for an unknown store.
func (s StoreType) Platform() string { return platformLabels[s] }

// Valid reports whether s names a known storefront.
func (s StoreType) Valid() bool {
	_, ok := platformLabels[s]
	return ok
}

// ParseStoreType normalizes and validates a storefront key from user input.
func ParseStoreType(raw string) (StoreType, error) {
	s := StoreType(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown store %q", raw)
	}
	return s, nil
}
