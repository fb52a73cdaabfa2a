// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/afonsecab/rupsco/geocode"
	"github.com/afonsecab/rupsco/registry"
	"github.com/afonsecab/rupsco/utils/textutils"
	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"
)

var geocodeOptions = struct {
	ReportsDir      string
	ImagesDir       string
	CacheFile       string
	OnlyOperational bool
	MinDelay        time.Duration
	MaxRetries      int
	RetryWait       time.Duration
}{}

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocodifica los municipios de prestación y genera el mapa de calor",
	Long: `Resuelve las coordenadas de cada municipio de prestación contra Nominatim,
con caché persistente entre corridas, y genera los archivos de municipios
únicos, el registro enriquecido y el mapa de calor ponderado.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDatabase(true)
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := registry.NewSQLProviderRepository(db)
		if err != nil {
			return fmt.Errorf("initializing repository: %w", err)
		}

		places, err := repo.ServicePlaces(geocodeOptions.OnlyOperational)
		if err != nil {
			return fmt.Errorf("loading service places: %w", err)
		}

		if len(places) == 0 {
			return fmt.Errorf("no service places in %s - run 'rupsco etl' first", databasePath())
		}

		for _, dir := range []string{geocodeOptions.ReportsDir, geocodeOptions.ImagesDir} {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
		}

		cachePath := geocodeOptions.CacheFile
		if cachePath == "" {
			cachePath = filepath.Join(geocodeOptions.ReportsDir, "geo_cache_municipios.csv")
		}

		cache := geocode.LoadCache(cachePath)
		log.Printf("Loaded %s cached queries from %s", textutils.FormatInt(int64(cache.Len())), cachePath)

		userAgent := fmt.Sprintf("rupsco/%s (+https://github.com/afonsecab/rupsco)", Version)
		resolver := geocode.NewResolver(geocode.NewNominatim(userAgent), geocode.Config{
			MinDelay:   geocodeOptions.MinDelay,
			MaxRetries: geocodeOptions.MaxRetries,
			RetryWait:  geocodeOptions.RetryWait,
		})

		batch := geocode.NewBatch(cache, resolver)
		result := batch.GeocodeAll(cmd.Context(), places)

		uniquePath := filepath.Join(geocodeOptions.ReportsDir, "geo_municipios_unique.csv")
		if err := geocode.WriteUniquePlaces(uniquePath, result.Unique); err != nil {
			return err
		}

		affected, err := repo.BackfillCoordinates(result, geocodeOptions.OnlyOperational)
		if err != nil {
			return fmt.Errorf("backfilling coordinates: %w", err)
		}

		log.Printf("Backfilled %s prestadores with coordinates", textutils.FormatInt(affected))

		enrichedPath := filepath.Join(geocodeOptions.ReportsDir, "geo_prestacion_all.csv")
		if err := repo.ExportEnrichedCSV(enrichedPath, geocodeOptions.OnlyOperational); err != nil {
			return err
		}

		points, err := repo.EnrichedPlacePoints(geocodeOptions.OnlyOperational)
		if err != nil {
			return err
		}

		heat := geocode.AggregateHeat(points)
		if len(heat) == 0 {
			log.Printf("No points geocoded. Check queries in %s", uniquePath)

			return nil
		}

		heatmapPath := filepath.Join(geocodeOptions.ImagesDir, "heatmap_prestacion_municipios.html")
		if err := geocode.RenderHeatmap(heatmapPath, heat); err != nil {
			return err
		}

		log.Printf("[DONE] municipios geocoded: %d/%d -> %s", result.Resolved, result.Total(), heatmapPath)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)

	geocodeCmd.Flags().StringVar(
		&geocodeOptions.ReportsDir,
		"reports-dir",
		"reports",
		"Directorio para los archivos CSV generados",
	)
	geocodeCmd.Flags().StringVar(
		&geocodeOptions.ImagesDir,
		"images-dir",
		"images",
		"Directorio para el mapa de calor generado",
	)
	geocodeCmd.Flags().StringVar(
		&geocodeOptions.CacheFile,
		"cache-file",
		"",
		"Archivo de caché de geocodificación (por defecto reports-dir/geo_cache_municipios.csv)",
	)
	geocodeCmd.Flags().BoolVar(
		&geocodeOptions.OnlyOperational,
		"only-operational",
		true,
		"Geocodifica solo prestadores en estado OPERATIVA",
	)
	geocodeCmd.Flags().DurationVar(
		&geocodeOptions.MinDelay,
		"min-delay",
		1200*time.Millisecond,
		"Espera mínima entre llamadas a Nominatim",
	)
	geocodeCmd.Flags().IntVar(
		&geocodeOptions.MaxRetries,
		"max-retries",
		3,
		"Reintentos tras la primera llamada fallida",
	)
	geocodeCmd.Flags().DurationVar(
		&geocodeOptions.RetryWait,
		"retry-wait",
		8*time.Second,
		"Espera fija entre reintentos",
	)
}
