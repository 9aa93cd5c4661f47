package domain

import (
	"math"
)

// MuseumObject is a single provenance record: an object, the place it came
// from, and the institution that holds it today.
type MuseumObject struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	ImageURL        string       `json:"img_url,omitempty"`
	InventoryNumber string       `json:"inventory_number,omitempty"`
	Longitude       *float64     `json:"longitude"`
	Latitude        *float64     `json:"latitude"`
	PlaceName       string       `json:"place_name,omitempty"`
	City            string       `json:"city_en,omitempty"`
	Country         string       `json:"country_en,omitempty"`
	Institution     Institution  `json:"institution"`
	Links           []ObjectLink `json:"object_links,omitempty"`
	SourceLink      string       `json:"source_link,omitempty"`
}

// Institution is the holding institution of a museum object.
type Institution struct {
	Name      string   `json:"name"`
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
	Place     string   `json:"place,omitempty"`
	City      string   `json:"city_en,omitempty"`
	Country   string   `json:"country_en,omitempty"`
}

// ObjectLink is an external reference attached to an object.
type ObjectLink struct {
	LinkText string `json:"link_text"`
	URL      string `json:"url,omitempty"`
}

// Origin returns the origin coordinate. ok is false unless both components
// are present and finite.
func (o *MuseumObject) Origin() (GeoPoint, bool) {
	return point(o.Longitude, o.Latitude)
}

// Destination returns the institution coordinate. ok is false unless both
// components are present and finite.
func (o *MuseumObject) Destination() (GeoPoint, bool) {
	return point(o.Institution.Longitude, o.Institution.Latitude)
}

// ArcEligible reports whether all four coordinates are usable.
func (o *MuseumObject) ArcEligible() bool {
	_, okSrc := o.Origin()
	_, okDst := o.Destination()
	return okSrc && okDst
}

// LinkInfo returns the best external link for display: the first object link,
// then the source link, and "None" when there is nothing to show.
func (o *MuseumObject) LinkInfo() (url, text string) {
	if len(o.Links) > 0 {
		l := o.Links[0]
		if l.URL != "" {
			return l.URL, l.LinkText
		}
		return l.LinkText, l.LinkText
	}
	if o.SourceLink != "" {
		return o.SourceLink, o.SourceLink
	}
	return "", "None"
}

func point(lon, lat *float64) (GeoPoint, bool) {
	if !finite(lon) || !finite(lat) {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: *lat, Lon: *lon}, true
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// Float returns a pointer to v. Handy for building objects in code and tests.
func Float(v float64) *float64 {
	return &v
}

// ObjectQuery selects a page of objects inside a viewport.
type ObjectQuery struct {
	Bounds   MapBounds `json:"bounds"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// ObjectPage is one page of backend results.
type ObjectPage struct {
	Objects   []MuseumObject `json:"data"`
	Page      int            `json:"page"`
	PageSize  int            `json:"page_size"`
	PageCount int            `json:"page_count"`
	Total     int            `json:"total"`
}

// ClusteredArc is a derived origin→destination aggregate. It is recomputed
// from the object collection and never persisted.
type ClusteredArc struct {
	Key             string          `json:"key"`
	Source          GeoPoint        `json:"source"`
	Target          GeoPoint        `json:"target"`
	OriginName      string          `json:"origin_name"`
	DestinationName string          `json:"destination_name"`
	Count           int             `json:"count"`
	Members         []*MuseumObject `json:"-"`
}

// StatRow is one row of the backend statistics endpoint.
type StatRow struct {
	Country         *string `json:"country_en"`
	City            *string `json:"city_en"`
	InstitutionName string  `json:"institution_name"`
	TotalObjects    string  `json:"total_objects"`
}

// StatGroup is a grouped statistic (a country, city, or institution).
type StatGroup struct {
	Name         string `json:"name"`
	TotalObjects int    `json:"total_objects"`
}

// StatsSummary is the grouped statistics panel payload.
type StatsSummary struct {
	TotalCount   int         `json:"total_count"`
	Countries    []StatGroup `json:"countries"`
	Cities       []StatGroup `json:"cities"`
	Institutions []StatGroup `json:"institutions"`
}

// SearchResult is a geocoded place.
type SearchResult struct {
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}
