package exsitu

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/samirrijal/exsitu/internal/core/domain"
)

// number decodes a JSON number, a numeric string or null. Anything
// unparsable decodes as absent.
type number struct {
	v *float64
}

func (n *number) UnmarshalJSON(b []byte) error {
	n.v = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	} else {
		s = string(b)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	n.v = &f
	return nil
}

// id decodes a record id sent as a number or a string.
type id string

func (i *id) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*i = id(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*i = id(n.String())
	return nil
}

type objectsResponse struct {
	Data []json.RawMessage `json:"data"`
	Meta struct {
		Pagination struct {
			Page      int `json:"page"`
			PageSize  int `json:"pageSize"`
			PageCount int `json:"pageCount"`
			Total     int `json:"total"`
		} `json:"pagination"`
	} `json:"meta"`
}

type record struct {
	ID         id         `json:"id"`
	Attributes attributes `json:"attributes"`
}

type attributes struct {
	Title                string `json:"title"`
	ImgURL               string `json:"img_url"`
	InventoryNumber      string `json:"inventory_number"`
	PlaceName            string `json:"place_name"`
	CityEN               string `json:"city_en"`
	CountryEN            string `json:"country_en"`
	InstitutionName      string `json:"institution_name"`
	InstitutionPlace     string `json:"institution_place"`
	InstitutionCityEN    string `json:"institution_city_en"`
	InstitutionCountryEN string `json:"institution_country_en"`
	Longitude            number `json:"longitude"`
	Latitude             number `json:"latitude"`
	InstitutionLongitude number `json:"institution_longitude"`
	InstitutionLatitude  number `json:"institution_latitude"`
	SourceLink           string `json:"source_link"`
	ObjectLinks          []struct {
		LinkText string `json:"link_text"`
		URL      string `json:"url"`
	} `json:"object_links"`
}

func (r record) toDomain() domain.MuseumObject {
	a := r.Attributes
	o := domain.MuseumObject{
		ID:              string(r.ID),
		Title:           a.Title,
		ImageURL:        a.ImgURL,
		InventoryNumber: a.InventoryNumber,
		Longitude:       a.Longitude.v,
		Latitude:        a.Latitude.v,
		PlaceName:       a.PlaceName,
		City:            a.CityEN,
		Country:         a.CountryEN,
		Institution: domain.Institution{
			Name:      a.InstitutionName,
			Longitude: a.InstitutionLongitude.v,
			Latitude:  a.InstitutionLatitude.v,
			Place:     a.InstitutionPlace,
			City:      a.InstitutionCityEN,
			Country:   a.InstitutionCountryEN,
		},
		SourceLink: a.SourceLink,
	}
	for _, l := range a.ObjectLinks {
		o.Links = append(o.Links, domain.ObjectLink{LinkText: l.LinkText, URL: l.URL})
	}
	return o
}
