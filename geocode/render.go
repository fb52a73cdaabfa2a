// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
)

// Leaflet viewport and heat-layer settings for the national map.
const (
	mapCenterLat = 4.5709
	mapCenterLng = -74.2973
	mapZoom      = 5
	heatRadius   = 14
	heatBlur     = 22
	heatMaxZoom  = 12
)

var heatmapTemplate = template.Must(template.New("heatmap").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Cobertura de prestación por municipio</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script src="https://unpkg.com/leaflet.heat@0.2.0/dist/leaflet-heat.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map').setView([{{.CenterLat}}, {{.CenterLng}}], {{.Zoom}});
L.tileLayer('https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png', {
	attribution: '&copy; OpenStreetMap contributors &copy; CARTO'
}).addTo(map);
L.heatLayer({{.Points}}, {radius: {{.Radius}}, blur: {{.Blur}}, maxZoom: {{.MaxZoom}}}).addTo(map);
</script>
</body>
</html>
`))

// RenderHeatmap writes a self-contained Leaflet heatmap HTML file for the
// given weighted points.
func RenderHeatmap(path string, points []WeightedPoint) error {
	triples := make([][3]float64, 0, len(points))
	for _, p := range points {
		triples = append(triples, [3]float64{p.Lat, p.Lng, float64(p.Weight)})
	}

	data, err := json.Marshal(triples)
	if err != nil {
		return fmt.Errorf("marshaling heat points: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating heatmap file: %w", err)
	}
	defer f.Close()

	err = heatmapTemplate.Execute(f, map[string]any{
		"CenterLat": mapCenterLat,
		"CenterLng": mapCenterLng,
		"Zoom":      mapZoom,
		"Radius":    heatRadius,
		"Blur":      heatBlur,
		"MaxZoom":   heatMaxZoom,
		"Points":    template.JS(data),
	})
	if err != nil {
		return fmt.Errorf("rendering heatmap: %w", err)
	}

	return nil
}
