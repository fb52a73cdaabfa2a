// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
)

// Result represents a geocoding result from the external source.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
}

// ErrNoMatch is returned by a Geocoder when the source answered but has no
// result for the query. It is a definitive answer, not a transient failure,
// so the resolver does not retry it.
var ErrNoMatch = errors.New("no geocoding match")

// Geocoder is the single external lookup capability. Implementations are
// expected to be unreliable; callers contain failures instead of propagating
// them.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Result, error)
}
