package domain

import "errors"

var (
	// ErrNotFound is returned when a lookup has no match.
	ErrNotFound = errors.New("not found")

	// ErrMissingToken means a required external credential is not configured.
	ErrMissingToken = errors.New("mapbox token is missing: set EXSITU_GEOCODER_TOKEN")

	// ErrUpstream wraps failures of the ex-situ backend or geocoder.
	ErrUpstream = errors.New("upstream request failed")
)
