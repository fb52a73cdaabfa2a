// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/afonsecab/rupsco/spatial"
	"golang.org/x/time/rate"
)

// Config controls the resolver's courtesy throttle and retry policy.
type Config struct {
	// MinDelay is the minimum elapsed time between the start of successive
	// external calls. Nominatim's fair-use policy asks for about one request
	// per second.
	MinDelay time.Duration

	// MaxRetries is the number of additional attempts after the first
	// failed call.
	MaxRetries int

	// RetryWait is the fixed wait between attempts.
	RetryWait time.Duration
}

// DefaultConfig returns the policy used against the public Nominatim
// endpoint.
func DefaultConfig() Config {
	return Config{
		MinDelay:   1200 * time.Millisecond,
		MaxRetries: 3,
		RetryWait:  8 * time.Second,
	}
}

// Resolver wraps a Geocoder with process-wide call spacing, bounded retries
// and error containment: a query that cannot be resolved yields "not found",
// never an error, so one bad municipality cannot abort a batch.
type Resolver struct {
	geocoder Geocoder
	cfg      Config
	limiter  *rate.Limiter
	sleep    func(time.Duration) // injectable for tests
}

// NewResolver creates a resolver around the given geocoder.
func NewResolver(geocoder Geocoder, cfg Config) *Resolver {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinDelay), 1)
	}

	return &Resolver{
		geocoder: geocoder,
		cfg:      cfg,
		limiter:  limiter,
		sleep:    time.Sleep,
	}
}

// Resolve geocodes a query, returning nil when the query cannot be resolved.
// Transient errors are retried up to MaxRetries times with RetryWait between
// attempts; a definitive no-match answer is returned immediately.
func (r *Resolver) Resolve(ctx context.Context, query string) *spatial.Point {
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			r.sleep(r.cfg.RetryWait)
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return nil
		}

		result, err := r.geocoder.Geocode(ctx, query)
		if err == nil {
			return &spatial.Point{Lat: result.Latitude, Lng: result.Longitude}
		}

		if errors.Is(err, ErrNoMatch) {
			return nil
		}

		log.Printf("Geocoding %q failed (attempt %d/%d): %v", query, attempt+1, r.cfg.MaxRetries+1, err)
	}

	return nil
}
