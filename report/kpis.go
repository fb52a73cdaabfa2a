// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Shorter label for the archipelago department; the full constitutional name
// is unwieldy in charts and grouped exports.
const (
	sanAndresFull  = "ARCHIPIÉLAGO DE SAN ANDRÉS, PROVIDENCIA Y SANTA CATALINA"
	sanAndresShort = "San Andrés & Prov."
)

// Summary is the dataset-level KPI set.
type Summary struct {
	RowsRaw               int     `json:"rows_raw"`
	UniqueProvidersByName int     `json:"unique_providers_by_name"`
	DepartmentsCovered    int     `json:"departments_covered"`
	MunicipalitiesCovered int     `json:"municipalities_covered"`
	PctAAAGroups          float64 `json:"pct_aaa_groups"`
}

// BuildSummary computes the dataset summary. The AAA percentage is taken at
// provider+location level: flags are OR-ed per (nit, nombre, departamento,
// municipio) group before measuring how many groups render all three
// services.
func BuildSummary(db *sql.DB) (*Summary, error) {
	s := &Summary{}

	err := db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM prestadores),
			(SELECT COUNT(DISTINCT nombre) FROM prestadores),
			(SELECT COUNT(DISTINCT departamento) FROM prestadores),
			(SELECT COUNT(DISTINCT municipio) FROM prestadores)
	`).Scan(&s.RowsRaw, &s.UniqueProvidersByName, &s.DepartmentsCovered, &s.MunicipalitiesCovered)
	if err != nil {
		return nil, fmt.Errorf("computing summary counts: %w", err)
	}

	var pct sql.NullFloat64

	err = db.QueryRow(`
		SELECT 100.0 * AVG(CASE WHEN a AND al AND aseo THEN 1.0 ELSE 0.0 END)
		FROM (
			SELECT
				BOOL_OR(has_acueducto) AS a,
				BOOL_OR(has_alcantarillado) AS al,
				BOOL_OR(has_aseo) AS aseo
			FROM prestadores
			GROUP BY nit, nombre, departamento, municipio
		)
	`).Scan(&pct)
	if err != nil {
		return nil, fmt.Errorf("computing AAA percentage: %w", err)
	}

	if pct.Valid {
		s.PctAAAGroups = math.Round(pct.Float64*100) / 100
	}

	return s, nil
}

// DeptCount is the number of registry rows for one department.
type DeptCount struct {
	Departamento string `json:"departamento"`
	Count        int    `json:"count"`
}

// DepartmentCounts returns rows per department, smallest first. Bogotá
// dwarfs every other department, so it can be excluded to keep the national
// distribution readable.
func DepartmentCounts(db *sql.DB, excludeBogota bool) ([]DeptCount, error) {
	query := `
		SELECT COALESCE(departamento, 'NO_DATA') AS dep, COUNT(*) AS n
		FROM prestadores
	`
	if excludeBogota {
		query += " WHERE departamento NOT ILIKE '%bogot%'"
	}

	query += " GROUP BY dep ORDER BY n ASC, dep ASC"

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying department counts: %w", err)
	}
	defer rows.Close()

	var counts []DeptCount

	for rows.Next() {
		var c DeptCount
		if err := rows.Scan(&c.Departamento, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning department count: %w", err)
		}

		if strings.EqualFold(c.Departamento, sanAndresFull) {
			c.Departamento = sanAndresShort
		}

		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// Water/sewer combination labels at municipality level.
const (
	ComboBoth      = "Both"
	ComboWaterOnly = "Water only"
	ComboSewerOnly = "Sewer only"
	ComboNone      = "None"
)

func comboLabel(acueducto, alcantarillado bool) string {
	switch {
	case acueducto && alcantarillado:
		return ComboBoth
	case acueducto:
		return ComboWaterOnly
	case alcantarillado:
		return ComboSewerOnly
	default:
		return ComboNone
	}
}

// MuniServiceMix is the water/sewer coverage of one municipality: a
// municipality has a service when any operational provider there renders it.
type MuniServiceMix struct {
	Departamento      string `json:"departamento"`
	Municipio         string `json:"municipio"`
	HasAcueducto      bool   `json:"has_acueducto"`
	HasAlcantarillado bool   `json:"has_alcantarillado"`
	Combo             string `json:"combo"`
}

// WaterSewerByMunicipality OR-s the water and sewer flags per municipality
// over operational providers and labels the combination. Municipalities
// served only by non-operational providers drop out, matching the upstream
// focus of this indicator.
func WaterSewerByMunicipality(db *sql.DB) ([]MuniServiceMix, error) {
	rows, err := db.Query(`
		SELECT departamento, municipio,
			BOOL_OR(has_acueducto) AS acueducto,
			BOOL_OR(has_alcantarillado) AS alcantarillado
		FROM prestadores
		WHERE estado ILIKE '%operativa%'
		GROUP BY departamento, municipio
		ORDER BY departamento ASC, municipio ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying municipality flags: %w", err)
	}
	defer rows.Close()

	var mixes []MuniServiceMix

	for rows.Next() {
		var m MuniServiceMix
		if err := rows.Scan(&m.Departamento, &m.Municipio, &m.HasAcueducto, &m.HasAlcantarillado); err != nil {
			return nil, fmt.Errorf("scanning municipality flags: %w", err)
		}

		m.Combo = comboLabel(m.HasAcueducto, m.HasAlcantarillado)
		mixes = append(mixes, m)
	}

	return mixes, rows.Err()
}

// DeptAARate is the share of one department's municipalities where some
// operational provider renders both water and sewer.
type DeptAARate struct {
	Departamento        string  `json:"departamento"`
	MunicipalitiesTotal int     `json:"municipalities_total"`
	MunicipalitiesAA    int     `json:"municipalities_aa"`
	AARatePct           float64 `json:"aa_rate_pct"`
}

// AARateByDepartment measures, per department, the percentage of its
// municipalities covered by both water and sewer, flags OR-ed at municipality
// level over operational providers. Highest rate first, larger departments
// breaking ties.
func AARateByDepartment(db *sql.DB) ([]DeptAARate, error) {
	rows, err := db.Query(`
		SELECT departamento,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE acueducto AND alcantarillado) AS aa
		FROM (
			SELECT departamento, municipio,
				BOOL_OR(has_acueducto) AS acueducto,
				BOOL_OR(has_alcantarillado) AS alcantarillado
			FROM prestadores
			WHERE estado ILIKE '%operativa%'
			GROUP BY departamento, municipio
		)
		GROUP BY departamento
		ORDER BY
			100.0 * (COUNT(*) FILTER (WHERE acueducto AND alcantarillado)) / COUNT(*) DESC,
			COUNT(*) DESC,
			departamento ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying AA rate: %w", err)
	}
	defer rows.Close()

	var rates []DeptAARate

	for rows.Next() {
		var r DeptAARate
		if err := rows.Scan(&r.Departamento, &r.MunicipalitiesTotal, &r.MunicipalitiesAA); err != nil {
			return nil, fmt.Errorf("scanning AA rate: %w", err)
		}

		r.AARatePct = 100.0 * float64(r.MunicipalitiesAA) / float64(r.MunicipalitiesTotal)
		rates = append(rates, r)
	}

	return rates, rows.Err()
}

// DeptDensity is a density proxy for one department: registry records per
// unique municipality.
type DeptDensity struct {
	Departamento           string  `json:"departamento"`
	Records                int     `json:"records"`
	UniqueMunicipalities   int     `json:"unique_municipalities"`
	RecordsPerMunicipality float64 `json:"records_per_municipality"`
}

// DensityByDepartment returns records per unique municipality for every
// department except Bogotá (which dwarfs the scale), least dense first.
func DensityByDepartment(db *sql.DB) ([]DeptDensity, error) {
	rows, err := db.Query(`
		SELECT departamento,
			COUNT(*) AS records,
			COUNT(DISTINCT municipio) AS municipalities
		FROM prestadores
		WHERE departamento NOT ILIKE '%bogot%'
		GROUP BY departamento
		ORDER BY 1.0 * COUNT(*) / COUNT(DISTINCT municipio) ASC, departamento ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying department density: %w", err)
	}
	defer rows.Close()

	var densities []DeptDensity

	for rows.Next() {
		var d DeptDensity
		if err := rows.Scan(&d.Departamento, &d.Records, &d.UniqueMunicipalities); err != nil {
			return nil, fmt.Errorf("scanning department density: %w", err)
		}

		if strings.EqualFold(d.Departamento, sanAndresFull) {
			d.Departamento = sanAndresShort
		}

		d.RecordsPerMunicipality = float64(d.Records) / float64(d.UniqueMunicipalities)
		densities = append(densities, d)
	}

	return densities, rows.Err()
}

// ClassCount is the number of registry rows with one service-mix label.
type ClassCount struct {
	Clasificacion string `json:"clasificacion"`
	Count         int    `json:"count"`
}

// ClassificationCounts returns rows per service-mix label, largest first.
func ClassificationCounts(db *sql.DB) ([]ClassCount, error) {
	rows, err := db.Query(`
		SELECT clasificacion, COUNT(*) AS n
		FROM prestadores
		GROUP BY clasificacion
		ORDER BY n DESC, clasificacion ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying classification counts: %w", err)
	}
	defer rows.Close()

	var counts []ClassCount

	for rows.Next() {
		var c ClassCount
		if err := rows.Scan(&c.Clasificacion, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning classification count: %w", err)
		}

		counts = append(counts, c)
	}

	return counts, rows.Err()
}

func writeCSV(path string, header []string, records [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing %s: %w", path, cerr))
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, record := range records {
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}

	w.Flush()

	return w.Error()
}

// WriteSummaryCSV exports the summary as metric,value rows.
func WriteSummaryCSV(path string, s *Summary) error {
	return writeCSV(path,
		[]string{"metric", "value"},
		[][]string{
			{"rows_raw", strconv.Itoa(s.RowsRaw)},
			{"unique_providers_by_name", strconv.Itoa(s.UniqueProvidersByName)},
			{"departments_covered", strconv.Itoa(s.DepartmentsCovered)},
			{"municipalities_covered", strconv.Itoa(s.MunicipalitiesCovered)},
			{"pct_aaa_groups", strconv.FormatFloat(s.PctAAAGroups, 'f', 2, 64)},
		})
}

// WriteDepartmentCountsCSV exports the per-department row counts.
func WriteDepartmentCountsCSV(path string, counts []DeptCount) error {
	records := make([][]string, 0, len(counts))
	for _, c := range counts {
		records = append(records, []string{c.Departamento, strconv.Itoa(c.Count)})
	}

	return writeCSV(path, []string{"departamento", "count"}, records)
}

// WriteClassificationCountsCSV exports the per-label row counts.
func WriteClassificationCountsCSV(path string, counts []ClassCount) error {
	records := make([][]string, 0, len(counts))
	for _, c := range counts {
		records = append(records, []string{c.Clasificacion, strconv.Itoa(c.Count)})
	}

	return writeCSV(path, []string{"clasificacion", "count"}, records)
}

// WriteWaterSewerByMunicipalityCSV exports the per-municipality water/sewer
// combination table.
func WriteWaterSewerByMunicipalityCSV(path string, mixes []MuniServiceMix) error {
	records := make([][]string, 0, len(mixes))
	for _, m := range mixes {
		records = append(records, []string{
			m.Departamento,
			m.Municipio,
			strconv.FormatBool(m.HasAcueducto),
			strconv.FormatBool(m.HasAlcantarillado),
			m.Combo,
		})
	}

	return writeCSV(path,
		[]string{"departamento", "municipio", "has_acueducto", "has_alcantarillado", "combo"},
		records)
}

// WriteAARateCSV exports the per-department AA coverage rates.
func WriteAARateCSV(path string, rates []DeptAARate) error {
	records := make([][]string, 0, len(rates))
	for _, r := range rates {
		records = append(records, []string{
			r.Departamento,
			strconv.Itoa(r.MunicipalitiesTotal),
			strconv.Itoa(r.MunicipalitiesAA),
			strconv.FormatFloat(r.AARatePct, 'f', 2, 64),
		})
	}

	return writeCSV(path,
		[]string{"departamento", "municipalities_total", "municipalities_aa", "aa_rate_pct"},
		records)
}

// WriteDensityCSV exports the per-department density proxy.
func WriteDensityCSV(path string, densities []DeptDensity) error {
	records := make([][]string, 0, len(densities))
	for _, d := range densities {
		records = append(records, []string{
			d.Departamento,
			strconv.Itoa(d.Records),
			strconv.Itoa(d.UniqueMunicipalities),
			strconv.FormatFloat(d.RecordsPerMunicipality, 'f', 2, 64),
		})
	}

	return writeCSV(path,
		[]string{"departamento", "records", "unique_municipalities", "records_per_municipality"},
		records)
}
