// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/afonsecab/rupsco/report"
	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"
)

var reportOptions = struct {
	ReportsDir    string
	ExcludeBogota bool
}{}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Genera los indicadores de cobertura del registro",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := openDatabase(true)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := os.MkdirAll(reportOptions.ReportsDir, 0o750); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}

		summary, err := report.BuildSummary(db)
		if err != nil {
			return err
		}

		summaryPath := filepath.Join(reportOptions.ReportsDir, "kpi_summary.csv")
		if err := report.WriteSummaryCSV(summaryPath, summary); err != nil {
			return err
		}

		log.Printf(
			"Summary - %d rows, %d providers, %d departments, %d municipalities, %.2f%% AAA",
			summary.RowsRaw,
			summary.UniqueProvidersByName,
			summary.DepartmentsCovered,
			summary.MunicipalitiesCovered,
			summary.PctAAAGroups,
		)

		deptCounts, err := report.DepartmentCounts(db, reportOptions.ExcludeBogota)
		if err != nil {
			return err
		}

		deptPath := filepath.Join(reportOptions.ReportsDir, "kpi_departamentos.csv")
		if err := report.WriteDepartmentCountsCSV(deptPath, deptCounts); err != nil {
			return err
		}

		classCounts, err := report.ClassificationCounts(db)
		if err != nil {
			return err
		}

		classPath := filepath.Join(reportOptions.ReportsDir, "kpi_clasificacion.csv")
		if err := report.WriteClassificationCountsCSV(classPath, classCounts); err != nil {
			return err
		}

		mixes, err := report.WaterSewerByMunicipality(db)
		if err != nil {
			return err
		}

		mixPath := filepath.Join(reportOptions.ReportsDir, "kpi_water_vs_sewer_by_municipality_flags.csv")
		if err := report.WriteWaterSewerByMunicipalityCSV(mixPath, mixes); err != nil {
			return err
		}

		rates, err := report.AARateByDepartment(db)
		if err != nil {
			return err
		}

		ratePath := filepath.Join(reportOptions.ReportsDir, "kpi_aa_rate_by_department.csv")
		if err := report.WriteAARateCSV(ratePath, rates); err != nil {
			return err
		}

		densities, err := report.DensityByDepartment(db)
		if err != nil {
			return err
		}

		densityPath := filepath.Join(reportOptions.ReportsDir, "density_department_excl_bogota.csv")
		if err := report.WriteDensityCSV(densityPath, densities); err != nil {
			return err
		}

		log.Printf("Reports written to %s", reportOptions.ReportsDir)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(
		&reportOptions.ReportsDir,
		"reports-dir",
		"reports",
		"Directorio para los archivos CSV generados",
	)
	reportCmd.Flags().BoolVar(
		&reportOptions.ExcludeBogota,
		"exclude-bogota",
		true,
		"Excluye Bogotá del conteo por departamento",
	)
}
