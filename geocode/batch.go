// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/afonsecab/rupsco/spatial"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Place is one registry row's place of service.
type Place struct {
	Departamento string
	Municipio    string
}

// UniquePlace is one distinct lookup query with the number of registry rows
// that share it and, after resolution, its coordinates and provenance.
type UniquePlace struct {
	Departamento string
	Municipio    string
	Query        string
	Weight       int
	Point        *spatial.Point
	Source       string
}

// BatchResult is the outcome of geocoding a batch of places.
type BatchResult struct {
	// Unique has one entry per distinct query, in first-seen order.
	Unique []*UniquePlace

	// Resolved counts the unique queries that ended up with coordinates,
	// from the cache or from a fresh lookup.
	Resolved int

	points map[string]*spatial.Point
}

// Total returns the number of distinct queries attempted.
func (r *BatchResult) Total() int {
	return len(r.Unique)
}

// PointFor joins a raw (departamento, municipio) pair back to its resolved
// coordinates. Unresolved or unknown pairs yield nil; the caller keeps the
// row either way (left-join semantics).
func (r *BatchResult) PointFor(departamento, municipio string) *spatial.Point {
	return r.points[BuildQuery(municipio, departamento)]
}

// Batch drives resolution over the distinct queries of a set of places,
// consulting the cache first and the resolver for the rest. Fresh results
// and failures are written through to the cache one by one, so partial
// progress survives an interrupted run and re-running never re-resolves a
// query already cached with coordinates.
type Batch struct {
	cache    *Cache
	resolver *Resolver
}

// NewBatch creates a batch geocoder over the given cache and resolver.
func NewBatch(cache *Cache, resolver *Resolver) *Batch {
	return &Batch{cache: cache, resolver: resolver}
}

// GeocodeAll resolves every distinct query of places. No individual failure
// is fatal: a query that cannot be resolved is recorded with source "fail"
// and absent coordinates, and the run continues.
func (b *Batch) GeocodeAll(ctx context.Context, places []Place) *BatchResult {
	result := &BatchResult{
		points: make(map[string]*spatial.Point),
	}

	index := make(map[string]*UniquePlace)

	for _, p := range places {
		query := BuildQuery(p.Municipio, p.Departamento)

		u, ok := index[query]
		if !ok {
			u = &UniquePlace{
				Departamento: strings.TrimSpace(p.Departamento),
				Municipio:    strings.TrimSpace(p.Municipio),
				Query:        query,
			}
			index[query] = u
			result.Unique = append(result.Unique, u)
		}

		u.Weight++
	}

	total := len(result.Unique)

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Geocoding municipios"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	for i, u := range result.Unique {
		b.resolveOne(ctx, u)

		if u.Point != nil {
			result.Resolved++
			result.points[u.Query] = u.Point
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				log.Printf("Updating progress bar: %v", err)
			}
		}

		if (i+1)%50 == 0 {
			log.Printf("[%d/%d] ok=%d", i+1, total, result.Resolved)
		}
	}

	log.Printf("Geocoding completed - %d of %d municipios resolved", result.Resolved, total)

	return result
}

func (b *Batch) resolveOne(ctx context.Context, u *UniquePlace) {
	if entry := b.cache.Lookup(u.Query); entry != nil && entry.Resolved() {
		u.Point = &spatial.Point{Lat: *entry.Lat, Lng: *entry.Lon}
		u.Source = SourceCache

		return
	}

	// Cache miss, or a previously failed query worth retrying.
	entry := &Entry{Address: u.Query, Source: SourceFail}
	u.Source = SourceFail

	if point := b.resolver.Resolve(ctx, u.Query); point != nil {
		u.Point = point
		u.Source = SourceNominatim
		entry.Lat = &point.Lat
		entry.Lon = &point.Lng
		entry.Source = SourceNominatim
	}

	if err := b.cache.Put(entry); err != nil {
		log.Printf("Persisting cache entry for %q: %v", u.Query, err)
	}
}
