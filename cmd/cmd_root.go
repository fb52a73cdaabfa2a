// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "rupsco",
	Short: "registro único de prestadores de servicios públicos de Colombia",
	Long: `
rupsco carga el Registro Único de Prestadores de Servicios Públicos (RUPS)
en una base consultable, geocodifica los municipios de prestación y genera
indicadores y mapas de cobertura de acueducto, alcantarillado y aseo.
`,
}

var dbPath string

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dbPath,
		"db-path",
		"database",
		"Directorio base donde almacenar la base de datos",
	)
}
