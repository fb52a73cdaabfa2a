// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/afonsecab/rupsco/spatial"
)

// ExportEnrichedCSV writes the stored registry rows together with the
// coordinates of their place of service. With onlyOperational set, rows of
// non-operational providers are left out entirely, matching the population
// that was geocoded. Within the exported population, rows whose place never
// resolved keep empty lat/lon cells; no such row is dropped.
func (r *sqlProviderRepository) ExportEnrichedCSV(path string, onlyOperational bool) (err error) {
	query := `
		SELECT nit, nombre, servicio, estado, departamento, municipio, clasificacion, point
		FROM prestadores
	`
	if onlyOperational {
		query += " WHERE " + operationalPredicate
	}

	rows, err := r.db.Query(query)
	if err != nil {
		return fmt.Errorf("querying prestadores: %w", err)
	}
	defer rows.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating enriched file: %w", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing enriched file: %w", cerr))
		}
	}()

	w := csv.NewWriter(f)

	header := []string{"nit", "nombre", "servicio", "estado", "departamento", "municipio", "clasificacion", "lat", "lon"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for rows.Next() {
		var nit, nombre, servicio, estado sql.NullString

		var departamento, municipio, clasificacion string

		var raw any

		if err := rows.Scan(&nit, &nombre, &servicio, &estado, &departamento, &municipio, &clasificacion, &raw); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}

		var lat, lon string

		if raw != nil {
			var p spatial.Point
			if err := p.Scan(raw); err != nil {
				return fmt.Errorf("decoding point: %w", err)
			}

			lat = strconv.FormatFloat(p.Lat, 'f', -1, 64)
			lon = strconv.FormatFloat(p.Lng, 'f', -1, 64)
		}

		record := []string{
			nit.String, nombre.String, servicio.String, estado.String,
			departamento, municipio, clasificacion, lat, lon,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}

	w.Flush()

	return w.Error()
}
