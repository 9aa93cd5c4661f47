package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/provenance"
	"github.com/samirrijal/exsitu/internal/core/usecases"
	"github.com/samirrijal/exsitu/internal/pkg/geospatial"
)

const (
	// gridPageSize is the number of objects per page of the object browser.
	gridPageSize = 12

	// flyToRadius is the half-width in meters of the viewport suggested
	// after a successful place search.
	flyToRadius = 50_000

	maxQueryLength = 200
)

// ObjectView is a museum object with its display link resolved.
type ObjectView struct {
	domain.MuseumObject
	LinkURL  string `json:"link_url"`
	LinkText string `json:"link_text"`
}

func newObjectView(o *domain.MuseumObject) ObjectView {
	url, text := o.LinkInfo()
	return ObjectView{MuseumObject: *o, LinkURL: url, LinkText: text}
}

// ArcsResponse is the arc layer GeoJSON plus the number of distinct arcs.
type ArcsResponse struct {
	provenance.FeatureCollection
	UniqueArcs int `json:"unique_arcs"`
}

// FlyTo tells the map where to move after a successful search.
type FlyTo struct {
	Center [2]float64       `json:"center"`
	Zoom   int              `json:"zoom"`
	Name   string           `json:"name"`
	Bounds domain.MapBounds `json:"bounds"`
}

func newFlyTo(r *domain.SearchResult) FlyTo {
	center := domain.GeoPoint{Lat: r.Latitude, Lon: r.Longitude}
	return FlyTo{
		Center: center.LonLat(),
		Zoom:   usecases.FlyToZoom,
		Name:   r.Name,
		Bounds: geospatial.BoundsAround(center, flyToRadius),
	}
}

// parseBounds reads the north, south, east and west query parameters.
// All four are required.
func parseBounds(c *fiber.Ctx) (domain.MapBounds, error) {
	var b domain.MapBounds
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"north", &b.North},
		{"south", &b.South},
		{"east", &b.East},
		{"west", &b.West},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			return b, fmt.Errorf("%s is required", p.name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return b, fmt.Errorf("%s must be a number", p.name)
		}
		*p.dst = v
	}
	return b, b.Validate()
}

// clientID identifies the caller for per-client state such as recent
// searches.
func clientID(c *fiber.Ctx) string {
	if id := strings.TrimSpace(c.Get("X-Client-ID")); id != "" {
		return id
	}
	return strings.TrimSpace(c.Query("client_id"))
}

// ListObjectsHandler returns one backend page of objects inside a viewport.
func ListObjectsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, err := parseBounds(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		page, err := deps.Objects.FetchPage(c.UserContext(), domain.ObjectQuery{
			Bounds:   bounds,
			Page:     c.QueryInt("page", 1),
			PageSize: c.QueryInt("page_size", deps.SyncConfig.PageSize),
		})
		if err != nil {
			return errFromDomain(c, err)
		}

		views := make([]ObjectView, 0, len(page.Objects))
		for i := range page.Objects {
			views = append(views, newObjectView(&page.Objects[i]))
		}

		pg := Pagination{Page: page.Page, PageSize: page.PageSize, PageCount: page.PageCount, Total: page.Total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: views, Pagination: pg})
	}
}

// ExportObjectsHandler downloads every object of a viewport as CSV.
func ExportObjectsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, err := parseBounds(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		objects, _, err := deps.Objects.FetchAll(c.UserContext(), bounds, usecases.MaxPageSize)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Attachment(provenance.CSVFilename(time.Now()))
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		if err := provenance.WriteCSV(c, objects); err != nil {
			return errInternal(c, err.Error())
		}
		return nil
	}
}

// ArcsHandler returns the provenance arcs of a viewport as GeoJSON.
func ArcsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, err := parseBounds(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		arcs, err := deps.Objects.Arcs(c.UserContext(), bounds)
		if err != nil {
			return errFromDomain(c, err)
		}

		return c.JSON(ArcsResponse{
			FeatureCollection: provenance.ToGeoJSON(arcs),
			UniqueArcs:        len(arcs),
		})
	}
}

// ArcObjectsHandler lists the objects travelling along one arc, a grid page
// at a time.
func ArcObjectsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Query("key")
		if key == "" {
			return errBadRequest(c, "key is required")
		}
		bounds, err := parseBounds(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		arcs, err := deps.Objects.Arcs(c.UserContext(), bounds)
		if err != nil {
			return errFromDomain(c, err)
		}

		for _, a := range arcs {
			if a.Key != key {
				continue
			}
			members, page, pages := domain.PageOf(a.Members, c.QueryInt("page", 1), gridPageSize)
			views := make([]ObjectView, 0, len(members))
			for _, m := range members {
				views = append(views, newObjectView(m))
			}
			pg := Pagination{Page: page, PageSize: gridPageSize, PageCount: pages, Total: a.Count}
			SetLinkHeaders(c, pg)
			return c.JSON(PaginatedResponse{Data: views, Pagination: pg})
		}
		return errNotFound(c, "arc not found in this viewport")
	}
}

// StatsHandler returns object counts grouped by country, city and
// institution.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summary, err := deps.Stats.Summary(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(summary)
	}
}

// SearchHandler geocodes a place name. When the caller identifies itself the
// query is remembered in its recent searches.
func SearchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > maxQueryLength {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		if deps.Search == nil {
			return errFromDomain(c, domain.ErrMissingToken)
		}

		ctx := c.UserContext()
		res, err := deps.Search.Search(ctx, query)
		if err != nil {
			return errFromDomain(c, err)
		}
		if res == nil {
			// No match is a normal answer and is not remembered.
			return c.JSON(fiber.Map{"result": nil, "fly_to": nil})
		}

		if id := clientID(c); id != "" {
			deps.Search.Remember(ctx, id, deps.Search.LoadRecent(ctx, id), query)
		}

		return c.JSON(fiber.Map{
			"result": res,
			"fly_to": newFlyTo(res),
		})
	}
}

// RecentSearchesHandler returns the caller's recent searches, newest first.
func RecentSearchesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := clientID(c)
		if id == "" {
			return errBadRequest(c, "X-Client-ID header or client_id parameter is required")
		}

		recent := []string{}
		if deps.Search != nil {
			recent = deps.Search.LoadRecent(c.UserContext(), id).List()
		}
		return c.JSON(fiber.Map{"searches": recent})
	}
}
