// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/afonsecab/rupsco/registry"
	"github.com/afonsecab/rupsco/report"
	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"
)

var serveOptions = struct {
	ImagesDir string
}{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sirve los indicadores y el mapa de calor en un servidor local",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := openDatabase(true)
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := registry.NewSQLProviderRepository(db)
		if err != nil {
			return fmt.Errorf("initializing repository: %w", err)
		}

		heatmapPath := filepath.Join(serveOptions.ImagesDir, "heatmap_prestacion_municipios.html")
		server := report.NewServer(db, repo, heatmapPath)

		fmt.Println("📊 Coverage preview starting...")
		fmt.Println("📍 Open http://localhost:8080 in your browser")
		fmt.Println("🔒 Local only - not exposed to internet")

		return server.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(
		&serveOptions.ImagesDir,
		"images-dir",
		"images",
		"Directorio donde se encuentra el mapa de calor generado",
	)
}
