// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/afonsecab/rupsco/registry"
	"github.com/afonsecab/rupsco/utils/textutils"
	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"
)

const databaseFile = "rups.duckdb"

func databasePath() string {
	return filepath.Join(dbPath, databaseFile)
}

func openDatabase(mustExist bool) (*sql.DB, error) {
	path := databasePath()

	if mustExist {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("database not found at %s - run 'rupsco etl' first", path)
		}
	} else if err := os.MkdirAll(dbPath, 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return db, nil
}

var etlCmd = &cobra.Command{
	Use:   "etl <registro.csv>",
	Short: "Carga el registro RUPS en la base de datos local",
	Long: `Lee el archivo CSV del RUPS, descarta las filas sin departamento o municipio
de prestación y reemplaza el contenido de la tabla prestadores.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		providers, metrics, err := registry.Extract(args[0])
		if err != nil {
			return err
		}

		log.Printf(
			"Extraction completed - %s rows read, %s kept, %s without place of service",
			textutils.FormatInt(int64(metrics.RowsRead)),
			textutils.FormatInt(int64(metrics.RowsKept)),
			textutils.FormatInt(int64(metrics.RowsSkipped)),
		)

		db, err := openDatabase(false)
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := registry.NewSQLProviderRepository(db)
		if err != nil {
			return fmt.Errorf("initializing repository: %w", err)
		}

		if err := repo.CreateSchema(); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}

		if err := repo.ReplaceProviders(providers); err != nil {
			return fmt.Errorf("loading providers: %w", err)
		}

		log.Printf("Loaded %s prestadores into %s", textutils.FormatInt(int64(len(providers))), databasePath())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(etlCmd)
}
