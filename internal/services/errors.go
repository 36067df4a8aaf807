// Package services defines the business logic of the price pipeline.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// "Not available" is deliberately absent from this list: a game, identifier
// or price that does not exist upstream is a normal result, reported as a nil
// snapshot with a nil error.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"

	"github.com/tbourn/media-tracker/internal/storefront"
)

var (
	// ErrUnknownStore is returned when no StoreClient is registered for the
	// requested store type.
	ErrUnknownStore = storefront.ErrUnknownStore

	// ErrInvalidRegion is returned when the region is not served by the store.
	ErrInvalidRegion = errors.New("region not supported by store")

	// ErrInvalidGameID is returned for non-positive canonical game ids.
	ErrInvalidGameID = errors.New("invalid game id")

	// ErrRefreshInProgress is returned when a refresh for the same store is
	// already running.
	ErrRefreshInProgress = errors.New("refresh already in progress")

	// ErrRunNotFound indicates that the requested refresh run does not exist.
	ErrRunNotFound = errors.New("refresh run not found")
)
