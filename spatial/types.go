// Copyright 2026 The rupsco Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"database/sql/driver"
	"fmt"
)

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// Value implements the driver.Valuer interface for database serialization.
func (p Point) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (p *Point) Scan(value interface{}) error {
	if value == nil {
		p.Lat, p.Lng = 0, 0

		return nil
	}

	switch v := value.(type) {
	case []byte:
		// WKT form DuckDB emits when a POINT_2D is cast to text, e.g. from
		// ST_AsText: "POINT (lng lat)"
		_, err := fmt.Sscanf(string(v), "POINT (%f %f)", &p.Lng, &p.Lat)

		return err
	case map[string]interface{}:
		x, okX := v["x"].(float64)
		y, okY := v["y"].(float64)

		if !okX || !okY {
			return fmt.Errorf("spatial: invalid map for point: expected 'x' and 'y' float64 fields, got %+v", v)
		}

		p.Lng = x
		p.Lat = y

		return nil
	default:
		return fmt.Errorf("spatial: unsupported type for Point scan: %T", value)
	}
}
