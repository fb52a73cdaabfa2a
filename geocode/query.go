// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"regexp"
	"strings"
)

var emptySegment = regexp.MustCompile(`,\s*,`)

// BuildQuery normalizes a (municipio, departamento) pair into the canonical
// lookup string "Municipio, Departamento, Colombia". Empty segments are
// collapsed and surrounding commas and spaces trimmed, so the same string is
// used both to query the geocoder and to index the cache.
//
// BuildQuery("", "") yields "Colombia"; BuildQuery("Tunja", "") yields
// "Tunja, Colombia".
func BuildQuery(municipio, departamento string) string {
	q := strings.TrimSpace(municipio) + ", " + strings.TrimSpace(departamento) + ", Colombia"

	for {
		collapsed := emptySegment.ReplaceAllString(q, ", ")
		if collapsed == q {
			break
		}

		q = collapsed
	}

	return strings.Trim(q, ", ")
}
