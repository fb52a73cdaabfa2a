// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapGeocoder answers from a fixed table and counts calls per query.
type mapGeocoder struct {
	results map[string]*Result
	calls   map[string]int
}

func newMapGeocoder(results map[string]*Result) *mapGeocoder {
	return &mapGeocoder{results: results, calls: make(map[string]int)}
}

func (g *mapGeocoder) Geocode(_ context.Context, query string) (*Result, error) {
	g.calls[query]++

	if r, ok := g.results[query]; ok {
		return r, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrNoMatch, query)
}

func newTestBatch(t *testing.T, g Geocoder) (*Batch, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cache.csv")
	resolver := NewResolver(g, Config{MinDelay: 0, MaxRetries: 0})
	resolver.sleep = func(time.Duration) {}

	return NewBatch(LoadCache(path), resolver), path
}

func TestGeocodeAllGroupsAndWeights(t *testing.T) {
	g := newMapGeocoder(map[string]*Result{
		"Tunja, Boyacá, Colombia":         {Latitude: 5.5324, Longitude: -73.3616},
		"Cali, Valle del Cauca, Colombia": {Latitude: 3.4372, Longitude: -76.5225},
	})
	batch, _ := newTestBatch(t, g)

	result := batch.GeocodeAll(context.Background(), []Place{
		{Departamento: "Boyacá", Municipio: "Tunja"},
		{Departamento: "Valle del Cauca", Municipio: "Cali"},
		{Departamento: "Boyacá", Municipio: " Tunja "}, // same key after trimming
	})

	require.Equal(t, 2, result.Total())
	assert.Equal(t, 2, result.Resolved)

	first := result.Unique[0]
	assert.Equal(t, "Tunja, Boyacá, Colombia", first.Query)
	assert.Equal(t, 2, first.Weight)
	assert.Equal(t, SourceNominatim, first.Source)
	require.NotNil(t, first.Point)
	assert.InDelta(t, 5.5324, first.Point.Lat, 1e-9)

	second := result.Unique[1]
	assert.Equal(t, "Cali, Valle del Cauca, Colombia", second.Query)
	assert.Equal(t, 1, second.Weight)

	// One external call per distinct query.
	assert.Equal(t, 1, g.calls["Tunja, Boyacá, Colombia"])
	assert.Equal(t, 1, g.calls["Cali, Valle del Cauca, Colombia"])
}

func TestGeocodeAllIsIdempotent(t *testing.T) {
	g := newMapGeocoder(map[string]*Result{
		"Tunja, Boyacá, Colombia": {Latitude: 5.5324, Longitude: -73.3616},
	})
	batch, path := newTestBatch(t, g)

	places := []Place{{Departamento: "Boyacá", Municipio: "Tunja"}}
	batch.GeocodeAll(context.Background(), places)
	require.Equal(t, 1, g.calls["Tunja, Boyacá, Colombia"])

	// A fresh batch over the persisted cache makes no external calls.
	second := NewBatch(LoadCache(path), NewResolver(g, Config{}))
	result := second.GeocodeAll(context.Background(), places)

	assert.Equal(t, 1, g.calls["Tunja, Boyacá, Colombia"])
	assert.Equal(t, 1, result.Resolved)
	assert.Equal(t, SourceCache, result.Unique[0].Source)
}

func TestGeocodeAllRetriesCachedFailures(t *testing.T) {
	g := newMapGeocoder(nil)
	batch, path := newTestBatch(t, g)

	places := []Place{{Departamento: "Boyacá", Municipio: "Nowhere"}}
	result := batch.GeocodeAll(context.Background(), places)

	require.Equal(t, 0, result.Resolved)
	assert.Equal(t, SourceFail, result.Unique[0].Source)
	assert.Nil(t, result.Unique[0].Point)

	// The failure was cached but does not satisfy a later run: the query is
	// attempted again, and this time the geocoder knows the answer.
	g.results = map[string]*Result{
		"Nowhere, Boyacá, Colombia": {Latitude: 1, Longitude: 2},
	}

	second := NewBatch(LoadCache(path), NewResolver(g, Config{}))
	retried := second.GeocodeAll(context.Background(), places)

	assert.Equal(t, 2, g.calls["Nowhere, Boyacá, Colombia"])
	assert.Equal(t, 1, retried.Resolved)
	assert.Equal(t, SourceNominatim, retried.Unique[0].Source)
}

func TestGeocodeAllEndToEnd(t *testing.T) {
	g := newMapGeocoder(map[string]*Result{
		"Tunja, Boyacá, Colombia": {Latitude: 5.5324, Longitude: -73.3616},
	})
	batch, path := newTestBatch(t, g)

	result := batch.GeocodeAll(context.Background(), []Place{
		{Departamento: "Boyacá", Municipio: "Tunja"},
		{Departamento: "Boyacá", Municipio: "Tunja"},
		{Departamento: "", Municipio: ""},
	})

	require.Equal(t, 2, result.Total())
	assert.Equal(t, []int{2, 1}, []int{result.Unique[0].Weight, result.Unique[1].Weight})
	assert.Equal(t, "Colombia", result.Unique[1].Query)

	// Left join: resolved pairs get coordinates, the rest stay nil.
	require.NotNil(t, result.PointFor("Boyacá", "Tunja"))
	assert.Nil(t, result.PointFor("", ""))
	assert.Nil(t, result.PointFor("Boyacá", "Sogamoso"))

	// Both outcomes were persisted.
	cache := LoadCache(path)
	require.Equal(t, 2, cache.Len())
	assert.True(t, cache.Lookup("Tunja, Boyacá, Colombia").Resolved())
	assert.False(t, cache.Lookup("Colombia").Resolved())
}
