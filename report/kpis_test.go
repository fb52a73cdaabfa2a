// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/afonsecab/rupsco/registry"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReportDB(t *testing.T) (*sql.DB, registry.ProviderRepository) {
	t.Helper()

	db, err := sql.Open("duckdb", "") // In-memory database
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := registry.NewSQLProviderRepository(db)
	require.NoError(t, err)
	require.NoError(t, repo.CreateSchema())

	return db, repo
}

func seedProviders(t *testing.T, repo registry.ProviderRepository) {
	t.Helper()

	providers := []*registry.Provider{
		// One provider rendering all three services in Tunja, split across
		// two rows: the flags must be OR-ed per group before measuring AAA.
		{NIT: "900123456", Nombre: "EMPRESA DE TUNJA", Servicio: "Acueducto - Alcantarillado", Estado: "OPERATIVA", Departamento: "BOYACA", Municipio: "TUNJA"},
		{NIT: "900123456", Nombre: "EMPRESA DE TUNJA", Servicio: "Aseo", Estado: "OPERATIVA", Departamento: "BOYACA", Municipio: "TUNJA"},
		// The same provider in another municipality, aseo only.
		{NIT: "900123456", Nombre: "EMPRESA DE TUNJA", Servicio: "Aseo", Estado: "OPERATIVA", Departamento: "BOYACA", Municipio: "SOGAMOSO"},
		// Bogotá, to exercise the exclusion filter.
		{NIT: "900777777", Nombre: "EAAB", Servicio: "AAA", Estado: "OPERATIVA", Departamento: "BOGOTÁ, D.C.", Municipio: "BOGOTÁ, D.C."},
		{NIT: "900888888", Nombre: "LIMPIEZA CAPITAL", Servicio: "Aseo", Estado: "OPERATIVA", Departamento: "BOGOTÁ, D.C.", Municipio: "BOGOTÁ, D.C."},
		// The archipelago department, to exercise the short label.
		{NIT: "900999999", Nombre: "AGUAS DEL ARCHIPIELAGO", Servicio: "Acueducto", Estado: "OPERATIVA", Departamento: "ARCHIPIÉLAGO DE SAN ANDRÉS, PROVIDENCIA Y SANTA CATALINA", Municipio: "SAN ANDRÉS"},
	}

	for _, p := range providers {
		p.DeriveServices()
	}

	require.NoError(t, repo.ReplaceProviders(providers))
}

func TestBuildSummary(t *testing.T) {
	db, repo := setupReportDB(t)
	seedProviders(t, repo)

	summary, err := BuildSummary(db)

	require.NoError(t, err)
	assert.Equal(t, 6, summary.RowsRaw)
	assert.Equal(t, 4, summary.UniqueProvidersByName)
	assert.Equal(t, 3, summary.DepartmentsCovered)
	assert.Equal(t, 4, summary.MunicipalitiesCovered)

	// Five (nit, nombre, departamento, municipio) groups, of which two are
	// AAA: the Tunja group once its two rows are OR-ed, and EAAB.
	assert.InDelta(t, 40.0, summary.PctAAAGroups, 1e-9)
}

func TestBuildSummaryEmpty(t *testing.T) {
	db, _ := setupReportDB(t)

	summary, err := BuildSummary(db)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.RowsRaw)
	assert.Zero(t, summary.PctAAAGroups)
}

func TestDepartmentCounts(t *testing.T) {
	db, repo := setupReportDB(t)
	seedProviders(t, repo)

	counts, err := DepartmentCounts(db, false)
	require.NoError(t, err)
	require.Len(t, counts, 3)

	byDept := make(map[string]int)
	for _, c := range counts {
		byDept[c.Departamento] = c.Count
	}

	assert.Equal(t, 3, byDept["BOYACA"])
	assert.Equal(t, 2, byDept["BOGOTÁ, D.C."])
	assert.Equal(t, 1, byDept["San Andrés & Prov."])

	// Ascending by count.
	assert.Equal(t, 1, counts[0].Count)
	assert.Equal(t, 3, counts[len(counts)-1].Count)
}

func TestDepartmentCountsExcludeBogota(t *testing.T) {
	db, repo := setupReportDB(t)
	seedProviders(t, repo)

	counts, err := DepartmentCounts(db, true)
	require.NoError(t, err)
	require.Len(t, counts, 2)

	for _, c := range counts {
		assert.NotContains(t, c.Departamento, "BOGOT")
	}
}

func TestClassificationCounts(t *testing.T) {
	db, repo := setupReportDB(t)
	seedProviders(t, repo)

	counts, err := ClassificationCounts(db)
	require.NoError(t, err)
	require.Len(t, counts, 4)

	// Largest first: three aseo-only rows in the seed.
	assert.Equal(t, registry.ClassOnlyAseo, counts[0].Clasificacion)
	assert.Equal(t, 3, counts[0].Count)

	byClass := make(map[string]int)
	for _, c := range counts {
		byClass[c.Clasificacion] = c.Count
	}

	assert.Equal(t, 1, byClass[registry.ClassAAA])
	assert.Equal(t, 1, byClass[registry.ClassAcueductoAlcantarillado])
	assert.Equal(t, 1, byClass[registry.ClassOnlyAcueducto])
}

// seedCoverageProviders seeds a mix of municipalities and estados for the
// municipality-level coverage KPIs.
func seedCoverageProviders(t *testing.T, repo registry.ProviderRepository) {
	t.Helper()

	providers := []*registry.Provider{
		// Tunja gets water and sewer from two different providers.
		{NIT: "900000001", Nombre: "ACUEDUCTO DE TUNJA", Servicio: "Acueducto", Estado: "OPERATIVA", Departamento: "BOYACA", Municipio: "TUNJA"},
		{NIT: "900000002", Nombre: "ALCANTARILLADO DE TUNJA", Servicio: "Alcantarillado", Estado: "OPERATIVA", Departamento: "BOYACA", Municipio: "TUNJA"},
		// Sogamoso's sewer provider is cancelled, so only water counts.
		{NIT: "900000003", Nombre: "ACUEDUCTO DE SOGAMOSO", Servicio: "Acueducto", Estado: "OPERATIVA", Departamento: "BOYACA", Municipio: "SOGAMOSO"},
		{NIT: "900000004", Nombre: "ANTIGUA DE SOGAMOSO", Servicio: "Alcantarillado", Estado: "CANCELADO", Departamento: "BOYACA", Municipio: "SOGAMOSO"},
		// Cali renders neither water nor sewer.
		{NIT: "900000005", Nombre: "ASEO DE CALI", Servicio: "Aseo", Estado: "OPERATIVA", Departamento: "VALLE DEL CAUCA", Municipio: "CALI"},
		// Pasto has sewer only.
		{NIT: "900000006", Nombre: "ALCANTARILLADO DE PASTO", Servicio: "Alcantarillado", Estado: "OPERATIVA", Departamento: "NARIÑO", Municipio: "PASTO"},
		// Ipiales is served only by a cancelled provider.
		{NIT: "900000007", Nombre: "EXTINTA DE IPIALES", Servicio: "AAA", Estado: "CANCELADO", Departamento: "NARIÑO", Municipio: "IPIALES"},
	}

	for _, p := range providers {
		p.DeriveServices()
	}

	require.NoError(t, repo.ReplaceProviders(providers))
}

func TestWaterSewerByMunicipality(t *testing.T) {
	db, repo := setupReportDB(t)
	seedCoverageProviders(t, repo)

	mixes, err := WaterSewerByMunicipality(db)
	require.NoError(t, err)

	// Ipiales drops out: its only provider is not operational.
	expected := []MuniServiceMix{
		{Departamento: "BOYACA", Municipio: "SOGAMOSO", HasAcueducto: true, HasAlcantarillado: false, Combo: ComboWaterOnly},
		{Departamento: "BOYACA", Municipio: "TUNJA", HasAcueducto: true, HasAlcantarillado: true, Combo: ComboBoth},
		{Departamento: "NARIÑO", Municipio: "PASTO", HasAcueducto: false, HasAlcantarillado: true, Combo: ComboSewerOnly},
		{Departamento: "VALLE DEL CAUCA", Municipio: "CALI", HasAcueducto: false, HasAlcantarillado: false, Combo: ComboNone},
	}
	assert.Equal(t, expected, mixes)
}

func TestAARateByDepartment(t *testing.T) {
	db, repo := setupReportDB(t)
	seedCoverageProviders(t, repo)

	rates, err := AARateByDepartment(db)
	require.NoError(t, err)
	require.Len(t, rates, 3)

	// Boyacá leads: one of its two operational municipalities has both
	// services. Sogamoso's cancelled sewer provider must not count.
	assert.Equal(t, DeptAARate{
		Departamento:        "BOYACA",
		MunicipalitiesTotal: 2,
		MunicipalitiesAA:    1,
		AARatePct:           50,
	}, rates[0])

	// The zero-rate departments tie and fall back to name order.
	assert.Equal(t, "NARIÑO", rates[1].Departamento)
	assert.Zero(t, rates[1].AARatePct)
	assert.Equal(t, "VALLE DEL CAUCA", rates[2].Departamento)
	assert.Zero(t, rates[2].AARatePct)
}

func TestDensityByDepartment(t *testing.T) {
	db, repo := setupReportDB(t)
	seedCoverageProviders(t, repo)

	densities, err := DensityByDepartment(db)
	require.NoError(t, err)
	require.Len(t, densities, 3)

	// Density counts every row, operational or not. Least dense first,
	// name order breaking the tie.
	expected := []DeptDensity{
		{Departamento: "NARIÑO", Records: 2, UniqueMunicipalities: 2, RecordsPerMunicipality: 1},
		{Departamento: "VALLE DEL CAUCA", Records: 1, UniqueMunicipalities: 1, RecordsPerMunicipality: 1},
		{Departamento: "BOYACA", Records: 4, UniqueMunicipalities: 2, RecordsPerMunicipality: 2},
	}
	assert.Equal(t, expected, densities)
}

func TestDensityByDepartmentExcludesBogota(t *testing.T) {
	db, repo := setupReportDB(t)
	seedProviders(t, repo)

	densities, err := DensityByDepartment(db)
	require.NoError(t, err)
	require.Len(t, densities, 2)

	// Bogotá is gone and the archipelago label is shortened.
	assert.Equal(t, "San Andrés & Prov.", densities[0].Departamento)
	assert.InDelta(t, 1.0, densities[0].RecordsPerMunicipality, 1e-9)
	assert.Equal(t, "BOYACA", densities[1].Departamento)
	assert.InDelta(t, 1.5, densities[1].RecordsPerMunicipality, 1e-9)
}

func TestWriteAARateCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi_aa_rate_by_department.csv")

	err := WriteAARateCSV(path, []DeptAARate{
		{Departamento: "BOYACA", MunicipalitiesTotal: 2, MunicipalitiesAA: 1, AARatePct: 50},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"departamento,municipalities_total,municipalities_aa,aa_rate_pct\nBOYACA,2,1,50.00\n",
		string(data))
}

func TestWriteWaterSewerByMunicipalityCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi_water_vs_sewer_by_municipality_flags.csv")

	err := WriteWaterSewerByMunicipalityCSV(path, []MuniServiceMix{
		{Departamento: "BOYACA", Municipio: "TUNJA", HasAcueducto: true, HasAlcantarillado: true, Combo: ComboBoth},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"departamento,municipio,has_acueducto,has_alcantarillado,combo\nBOYACA,TUNJA,true,true,Both\n",
		string(data))
}

func TestWriteSummaryCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi_summary.csv")

	err := WriteSummaryCSV(path, &Summary{
		RowsRaw:               6,
		UniqueProvidersByName: 4,
		DepartmentsCovered:    3,
		MunicipalitiesCovered: 4,
		PctAAAGroups:          40,
	})

	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	expected := `metric,value
rows_raw,6
unique_providers_by_name,4
departments_covered,3
municipalities_covered,4
pct_aaa_groups,40.00
`
	assert.Equal(t, expected, string(data))
}

func TestWriteDepartmentCountsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi_departamentos.csv")

	err := WriteDepartmentCountsCSV(path, []DeptCount{
		{Departamento: "San Andrés & Prov.", Count: 1},
		{Departamento: "BOYACA", Count: 3},
	})

	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "departamento,count\nSan Andrés & Prov.,1\nBOYACA,3\n", string(data))
}
