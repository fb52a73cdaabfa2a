// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"github.com/afonsecab/rupsco/spatial"
)

// WeightedPoint is a heatmap point: an exact coordinate pair and the number
// of enriched records that share it.
type WeightedPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight int     `json:"weight"`
}

// AggregateHeat groups coordinates by exact (lat, lng) pair and weights each
// pair by its record count. Nil entries (records whose place never resolved)
// are dropped. An empty result means there is nothing to render, which is
// not an error.
func AggregateHeat(points []*spatial.Point) []WeightedPoint {
	type pair struct {
		lat, lng float64
	}

	index := make(map[pair]int)

	var out []WeightedPoint

	for _, p := range points {
		if p == nil {
			continue
		}

		k := pair{lat: p.Lat, lng: p.Lng}
		if i, ok := index[k]; ok {
			out[i].Weight++

			continue
		}

		index[k] = len(out)
		out = append(out, WeightedPoint{Lat: p.Lat, Lng: p.Lng, Weight: 1})
	}

	return out
}
