// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Registry column headers. The export occasionally gains or reorders
// columns, so extraction maps them by name instead of position.
const (
	colNIT          = "NIT"
	colNombre       = "NOMBRE"
	colServicio     = "SERVICIO"
	colEstado       = "ESTADO"
	colDepartamento = "DEPARTAMENTO_PRESTACION"
	colMunicipio    = "MUNICIPIO_PRESTACION"
)

// ExtractMetrics tracks what happened while reading the registry file.
type ExtractMetrics struct {
	RowsRead    int
	RowsKept    int
	RowsSkipped int
}

// Extract reads the RUPS registry CSV and returns the rows that identify a
// place of service. Rows without a department or municipality are dropped,
// mirroring the registry's own convention that those records carry no
// geographic information. Reading the file itself failing is fatal: there is
// nothing to do without input.
func Extract(path string) ([]*Provider, *ExtractMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening registry file: %w", err)
	}
	defer f.Close()

	providers, metrics, err := parseRegistry(f)
	if err != nil {
		return nil, nil, fmt.Errorf("reading registry file %s: %w", path, err)
	}

	return providers, metrics, nil
}

func parseRegistry(r io.Reader) ([]*Provider, *ExtractMetrics, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		cols[name] = i
	}

	for _, required := range []string{colDepartamento, colMunicipio} {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("registry file has no %s column", required)
		}
	}

	cell := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[i])
	}

	metrics := &ExtractMetrics{}

	var providers []*Provider

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, nil, fmt.Errorf("reading row %d: %w", metrics.RowsRead+1, err)
		}

		metrics.RowsRead++

		departamento := cell(record, colDepartamento)
		municipio := cell(record, colMunicipio)

		if departamento == "" || municipio == "" {
			metrics.RowsSkipped++

			continue
		}

		p := &Provider{
			NIT:          cell(record, colNIT),
			Nombre:       cell(record, colNombre),
			Servicio:     cell(record, colServicio),
			Estado:       cell(record, colEstado),
			Departamento: departamento,
			Municipio:    municipio,
		}
		p.DeriveServices()

		providers = append(providers, p)
		metrics.RowsKept++
	}

	return providers, metrics, nil
}
