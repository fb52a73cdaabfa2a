// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"regexp"

	"github.com/afonsecab/rupsco/utils/textutils"
)

// Provider is one row of the RUPS registry: a public-utility provider and
// the municipality where it renders service.
type Provider struct {
	NIT          string
	Nombre       string
	Servicio     string
	Estado       string
	Departamento string
	Municipio    string

	// Per-row service flags derived from Servicio. "AAA" providers render
	// all three services, so the label propagates to each flag.
	HasAcueducto      bool
	HasAlcantarillado bool
	HasAseo           bool

	Clasificacion string
}

// Service-mix labels. Kept verbatim across exports so downstream analysis
// can group on them.
const (
	ClassAAA                     = "AAA (Acueducto+Alcantarillado+Aseo)"
	ClassAcueductoAlcantarillado = "Acueducto + Alcantarillado"
	ClassAcueductoAseo           = "Acueducto + Aseo"
	ClassAlcantarilladoAseo      = "Alcantarillado + Aseo"
	ClassOnlyAcueducto           = "Only Acueducto"
	ClassOnlyAlcantarillado      = "Only Alcantarillado"
	ClassOnlyAseo                = "Only Aseo"
	ClassNone                    = "No service"
)

var (
	reAcueducto      = regexp.MustCompile(`\b(acueducto|aaa)\b`)
	reAlcantarillado = regexp.MustCompile(`\b(alcantarillado|aaa)\b`)
	reAseo           = regexp.MustCompile(`\b(aseo|aaa)\b`)
)

// ServiceFlags derives the three per-service flags from a raw SERVICIO cell,
// case and accent insensitive.
func ServiceFlags(servicio string) (acueducto, alcantarillado, aseo bool) {
	norm := textutils.LowerASCIIFolding(servicio)

	return reAcueducto.MatchString(norm), reAlcantarillado.MatchString(norm), reAseo.MatchString(norm)
}

// Classify maps a flag combination to its service-mix label.
func Classify(acueducto, alcantarillado, aseo bool) string {
	switch {
	case acueducto && alcantarillado && aseo:
		return ClassAAA
	case acueducto && alcantarillado:
		return ClassAcueductoAlcantarillado
	case acueducto && aseo:
		return ClassAcueductoAseo
	case alcantarillado && aseo:
		return ClassAlcantarilladoAseo
	case acueducto:
		return ClassOnlyAcueducto
	case alcantarillado:
		return ClassOnlyAlcantarillado
	case aseo:
		return ClassOnlyAseo
	default:
		return ClassNone
	}
}

// DeriveServices fills the service flags and classification from Servicio.
func (p *Provider) DeriveServices() {
	p.HasAcueducto, p.HasAlcantarillado, p.HasAseo = ServiceFlags(p.Servicio)
	p.Clasificacion = Classify(p.HasAcueducto, p.HasAlcantarillado, p.HasAseo)
}
