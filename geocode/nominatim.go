// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const nominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// Nominatim geocodes municipality queries against OpenStreetMap's Nominatim
// API. The public endpoint allows roughly one request per second; the caller
// is responsible for throttling (see Resolver).
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatim creates a geocoder against the public Nominatim endpoint.
// A descriptive User-Agent with contact info is required by the Nominatim
// usage policy.
func NewNominatim(userAgent string) *Nominatim {
	return NewNominatimURL(nominatimBaseURL, userAgent)
}

// NewNominatimURL creates a geocoder against a specific endpoint, useful for
// self-hosted instances and tests.
func NewNominatimURL(baseURL, userAgent string) *Nominatim {
	return &Nominatim{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (n *Nominatim) Geocode(ctx context.Context, query string) (*Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("countrycodes", "co") // Bias to Colombia

	reqURL := n.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating geocoding request: %w", err)
	}

	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(places) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, query)
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", places[0].Lat, err)
	}

	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", places[0].Lon, err)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: places[0].DisplayName,
	}, nil
}
