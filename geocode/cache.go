// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Provenance of a cache entry.
const (
	SourceCache     = "cache"
	SourceNominatim = "nominatim"
	SourceFail      = "fail"
)

// Entry is a resolved-or-failed geocoding record for one lookup query.
// Lat and Lon are both nil exactly when Source is "fail".
type Entry struct {
	Address string
	Lat     *float64
	Lon     *float64
	Source  string
}

// Resolved reports whether the entry carries coordinates.
func (e *Entry) Resolved() bool {
	return e.Lat != nil && e.Lon != nil
}

// Cache is a persistent mapping from lookup query to geocoding entry, backed
// by a CSV file with columns address,lat,lon,source. Every Put rewrites the
// file (write-through), so an interrupted run loses at most the entry in
// flight and the next run resumes from everything already resolved.
type Cache struct {
	path    string
	entries map[string]*Entry
	order   []string // first-seen key order, kept stable across rewrites
}

// LoadCache reads the cache file at path. A missing or unreadable file is not
// an error: geocoding simply starts from an empty cache. Legacy files that
// name the key column "full_address" or lack optional columns are accepted.
func LoadCache(path string) *Cache {
	c := &Cache{
		path:    path,
		entries: make(map[string]*Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Ignoring unreadable geocoding cache %s: %v", path, err)
		}

		return c
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		log.Printf("Ignoring corrupt geocoding cache %s: %v", path, err)

		return c
	}

	if len(records) == 0 {
		return c
	}

	cols := columnIndex(records[0])

	addressCol, ok := cols["address"]
	if !ok {
		// Older cache files used "full_address" for the key column.
		if addressCol, ok = cols["full_address"]; !ok {
			log.Printf("Ignoring geocoding cache %s: no address column", path)

			return c
		}
	}

	for _, record := range records[1:] {
		address := field(record, addressCol)
		if address == "" {
			continue
		}

		entry := &Entry{
			Address: address,
			Lat:     parseCoord(field(record, col(cols, "lat"))),
			Lon:     parseCoord(field(record, col(cols, "lon"))),
			Source:  field(record, col(cols, "source")),
		}

		// Duplicate keys in a hand-edited or legacy file: last row wins.
		if _, seen := c.entries[address]; !seen {
			c.order = append(c.order, address)
		}

		c.entries[address] = entry
	}

	return c
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))

	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		cols[strings.ToLower(name)] = i
	}

	return cols
}

// col returns the index of a column, or -1 when the file doesn't have it.
func col(cols map[string]int, name string) int {
	if i, ok := cols[name]; ok {
		return i
	}

	return -1
}

// field returns the idx-th field, or "" for absent columns and short rows.
func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}

	return strings.TrimSpace(record[idx])
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}

	return &v
}

// Lookup returns the entry for the query, or nil when uncached.
func (c *Cache) Lookup(address string) *Entry {
	return c.entries[address]
}

// Len returns the number of cached queries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Put upserts the entry by its address and immediately persists the whole
// mapping. The durable file never contains duplicate keys.
func (c *Cache) Put(entry *Entry) error {
	if _, seen := c.entries[entry.Address]; !seen {
		c.order = append(c.order, entry.Address)
	}

	c.entries[entry.Address] = entry

	return c.flush()
}

func (c *Cache) flush() error {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"address", "lat", "lon", "source"}); err != nil {
		return fmt.Errorf("writing cache header: %w", err)
	}

	for _, address := range c.order {
		e := c.entries[address]
		if err := w.Write([]string{e.Address, formatCoord(e.Lat), formatCoord(e.Lon), e.Source}); err != nil {
			return fmt.Errorf("writing cache row: %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing cache rows: %w", err)
	}

	// Write-then-rename, so a crash mid-write leaves the previous cache file
	// intact instead of a truncated one.
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("writing cache file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("closing cache temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("replacing cache file: %w", err)
	}

	return nil
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}

	return strconv.FormatFloat(*v, 'f', -1, 64)
}
