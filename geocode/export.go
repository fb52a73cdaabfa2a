// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// WriteUniquePlaces exports the unique-query table, one row per distinct
// lookup query with its weight, coordinates and provenance. Unresolved
// queries keep empty lat/lon cells.
func WriteUniquePlaces(path string, unique []*UniquePlace) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating unique places file: %w", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing unique places file: %w", cerr))
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"departamento", "municipio", "weight", "query", "lat", "lon", "source"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, u := range unique {
		var lat, lon string
		if u.Point != nil {
			lat = strconv.FormatFloat(u.Point.Lat, 'f', -1, 64)
			lon = strconv.FormatFloat(u.Point.Lng, 'f', -1, 64)
		}

		row := []string{u.Departamento, u.Municipio, strconv.Itoa(u.Weight), u.Query, lat, lon, u.Source}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing row for %q: %w", u.Query, err)
		}
	}

	w.Flush()

	return w.Error()
}
