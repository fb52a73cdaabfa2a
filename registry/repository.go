// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/afonsecab/rupsco/geocode"
	"github.com/afonsecab/rupsco/spatial"
	"github.com/uber/h3-go/v4"
)

// ProviderRepository defines the database operations over the registry store.
type ProviderRepository interface {
	// CreateSchema creates the prestadores table.
	CreateSchema() error

	// ReplaceProviders replaces the whole prestadores table with the given rows.
	ReplaceProviders(providers []*Provider) error

	// ServicePlaces returns the place of service of every stored row,
	// optionally restricted to operational providers.
	ServicePlaces(onlyOperational bool) ([]geocode.Place, error)

	// BackfillCoordinates updates stored rows with the coordinates and H3
	// cells of their resolved place of service. The onlyOperational filter
	// must match the one used to select the places, so rows outside the
	// geocoded population are never enriched.
	BackfillCoordinates(result *geocode.BatchResult, onlyOperational bool) (int64, error)

	// EnrichedPlacePoints returns, row by row, the coordinates attached to
	// each stored record (nil for rows whose place never resolved).
	EnrichedPlacePoints(onlyOperational bool) ([]*spatial.Point, error)

	// HeatPoints aggregates stored coordinates into weighted heat points.
	HeatPoints(onlyOperational bool) ([]geocode.WeightedPoint, error)

	// ExportEnrichedCSV writes stored rows with their lat/lon to path.
	ExportEnrichedCSV(path string, onlyOperational bool) error

	// Count returns the number of stored rows.
	Count() (int, error)
}

type sqlProviderRepository struct {
	db *sql.DB
}

// NewSQLProviderRepository creates a repository over a DuckDB handle.
func NewSQLProviderRepository(db *sql.DB) (ProviderRepository, error) {
	// DuckDB needs to load the spatial extension
	_, err := db.Exec(`INSTALL spatial; LOAD spatial;`)
	if err != nil {
		return nil, err
	}

	return &sqlProviderRepository{db: db}, nil
}

func (r *sqlProviderRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS prestadores (
			nit VARCHAR,
			nombre VARCHAR,
			servicio VARCHAR,
			estado VARCHAR,
			departamento VARCHAR NOT NULL,
			municipio VARCHAR NOT NULL,
			has_acueducto BOOLEAN NOT NULL,
			has_alcantarillado BOOLEAN NOT NULL,
			has_aseo BOOLEAN NOT NULL,
			clasificacion VARCHAR NOT NULL,
			point POINT_2D,
			h3_res4 UBIGINT,
			h3_res5 UBIGINT,
			h3_res6 UBIGINT
		);
	`)

	return err
}

func nve(v string) any {
	if len(v) == 0 {
		return nil
	}

	return v
}

func (r *sqlProviderRepository) ReplaceProviders(providers []*Provider) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.Exec("DELETE FROM prestadores"); err != nil {
		return fmt.Errorf("clearing prestadores: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO prestadores (
			nit, nombre, servicio, estado, departamento, municipio,
			has_acueducto, has_alcantarillado, has_aseo, clasificacion,
			point, h3_res4, h3_res5, h3_res6
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL, NULL)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range providers {
		_, err := stmt.Exec(
			nve(p.NIT),
			nve(p.Nombre),
			nve(p.Servicio),
			nve(p.Estado),
			p.Departamento,
			p.Municipio,
			p.HasAcueducto,
			p.HasAlcantarillado,
			p.HasAseo,
			p.Clasificacion,
		)
		if err != nil {
			return fmt.Errorf("inserting provider %q: %w", p.Nombre, err)
		}
	}

	return tx.Commit()
}

// operationalPredicate is appended to WHERE clauses when a query is
// restricted to operational providers. Every reader of the geocoded data must
// compose it the same way ServicePlaces does, or rows outside the geocoded
// population leak into exports and weights.
const operationalPredicate = "estado ILIKE '%operativa%'"

func (r *sqlProviderRepository) ServicePlaces(onlyOperational bool) ([]geocode.Place, error) {
	query := "SELECT departamento, municipio FROM prestadores"
	if onlyOperational {
		query += " WHERE " + operationalPredicate
	}

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying service places: %w", err)
	}
	defer rows.Close()

	var places []geocode.Place

	for rows.Next() {
		var p geocode.Place
		if err := rows.Scan(&p.Departamento, &p.Municipio); err != nil {
			return nil, fmt.Errorf("scanning service place: %w", err)
		}

		places = append(places, p)
	}

	return places, rows.Err()
}

// H3 resolutions stored per row. Resolution 4 cells are roughly
// department-sized, 6 roughly municipality-sized.
var h3Resolutions = []int{4, 5, 6}

func h3Cells(point *spatial.Point) ([]uint64, error) {
	latLng := h3.NewLatLng(point.Lat, point.Lng)
	cells := make([]uint64, 0, len(h3Resolutions))

	for _, res := range h3Resolutions {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return nil, fmt.Errorf("converting to h3 cell at res %d: %w", res, err)
		}

		cells = append(cells, uint64(cell))
	}

	return cells, nil
}

func (r *sqlProviderRepository) BackfillCoordinates(result *geocode.BatchResult, onlyOperational bool) (int64, error) {
	var n int64

	update := `
		UPDATE prestadores
		SET point = ST_Point(?, ?), h3_res4 = ?, h3_res5 = ?, h3_res6 = ?
		WHERE TRIM(departamento) = ? AND TRIM(municipio) = ? AND point IS NULL
	`
	if onlyOperational {
		update += " AND " + operationalPredicate
	}

	stmt, err := r.db.Prepare(update)
	if err != nil {
		return 0, fmt.Errorf("preparing backfill statement: %w", err)
	}
	defer stmt.Close()

	for _, u := range result.Unique {
		if u.Point == nil {
			continue
		}

		cells, err := h3Cells(u.Point)
		if err != nil {
			return n, err
		}

		res, err := stmt.Exec(u.Point.Lng, u.Point.Lat, cells[0], cells[1], cells[2], u.Departamento, u.Municipio)
		if err != nil {
			return n, fmt.Errorf("backfilling %q: %w", u.Query, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return n, fmt.Errorf("getting rows affected: %w", err)
		}

		n += affected
	}

	return n, nil
}

func (r *sqlProviderRepository) EnrichedPlacePoints(onlyOperational bool) ([]*spatial.Point, error) {
	query := "SELECT point FROM prestadores"
	if onlyOperational {
		query += " WHERE " + operationalPredicate
	}

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	defer rows.Close()

	var points []*spatial.Point

	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning point: %w", err)
		}

		if raw == nil {
			points = append(points, nil)

			continue
		}

		var p spatial.Point
		if err := p.Scan(raw); err != nil {
			return nil, fmt.Errorf("decoding point: %w", err)
		}

		points = append(points, &p)
	}

	return points, rows.Err()
}

func (r *sqlProviderRepository) HeatPoints(onlyOperational bool) ([]geocode.WeightedPoint, error) {
	query := "SELECT point, COUNT(*) AS weight FROM prestadores WHERE point IS NOT NULL"
	if onlyOperational {
		query += " AND " + operationalPredicate
	}

	query += " GROUP BY point ORDER BY weight DESC"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying heat points: %w", err)
	}
	defer rows.Close()

	var points []geocode.WeightedPoint

	for rows.Next() {
		var p spatial.Point

		var weight int

		if err := rows.Scan(&p, &weight); err != nil {
			return nil, fmt.Errorf("scanning heat point: %w", err)
		}

		points = append(points, geocode.WeightedPoint{Lat: p.Lat, Lng: p.Lng, Weight: weight})
	}

	return points, rows.Err()
}

func (r *sqlProviderRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM prestadores").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting prestadores: %w", err)
	}

	return n, nil
}
