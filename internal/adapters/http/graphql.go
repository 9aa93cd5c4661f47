package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/provenance"
)

// boundsArgs returns the viewport arguments shared by arcs and objects.
func boundsArgs() graphql.FieldConfigArgument {
	return graphql.FieldConfigArgument{
		"north": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"south": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"east":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"west":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
	}
}

func boundsFromArgs(args map[string]interface{}) (domain.MapBounds, error) {
	b := domain.MapBounds{
		North: args["north"].(float64),
		South: args["south"].(float64),
		East:  args["east"].(float64),
		West:  args["west"].(float64),
	}
	return b, b.Validate()
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	arcType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Arc",
		Fields: graphql.Fields{
			"key":         &graphql.Field{Type: graphql.String},
			"source":      &graphql.Field{Type: geoPointType},
			"target":      &graphql.Field{Type: geoPointType},
			"origin":      &graphql.Field{Type: graphql.String},
			"destination": &graphql.Field{Type: graphql.String},
			"count":       &graphql.Field{Type: graphql.Int},
			"width":       &graphql.Field{Type: graphql.Float},
			"object_ids":  &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	institutionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Institution",
		Fields: graphql.Fields{
			"name":       &graphql.Field{Type: graphql.String},
			"place":      &graphql.Field{Type: graphql.String},
			"city_en":    &graphql.Field{Type: graphql.String},
			"country_en": &graphql.Field{Type: graphql.String},
			"longitude":  &graphql.Field{Type: graphql.Float},
			"latitude":   &graphql.Field{Type: graphql.Float},
		},
	})

	objectType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MuseumObject",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"title":            &graphql.Field{Type: graphql.String},
			"img_url":          &graphql.Field{Type: graphql.String},
			"inventory_number": &graphql.Field{Type: graphql.String},
			"place_name":       &graphql.Field{Type: graphql.String},
			"city_en":          &graphql.Field{Type: graphql.String},
			"country_en":       &graphql.Field{Type: graphql.String},
			"longitude":        &graphql.Field{Type: graphql.Float},
			"latitude":         &graphql.Field{Type: graphql.Float},
			"institution":      &graphql.Field{Type: institutionType},
			"link_url":         &graphql.Field{Type: graphql.String},
			"link_text":        &graphql.Field{Type: graphql.String},
		},
	})

	objectPageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ObjectPage",
		Fields: graphql.Fields{
			"objects":    &graphql.Field{Type: graphql.NewList(objectType)},
			"page":       &graphql.Field{Type: graphql.Int},
			"page_size":  &graphql.Field{Type: graphql.Int},
			"page_count": &graphql.Field{Type: graphql.Int},
			"total":      &graphql.Field{Type: graphql.Int},
		},
	})

	statGroupType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StatGroup",
		Fields: graphql.Fields{
			"name":          &graphql.Field{Type: graphql.String},
			"total_objects": &graphql.Field{Type: graphql.Int},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stats",
		Fields: graphql.Fields{
			"total_count":  &graphql.Field{Type: graphql.Int},
			"countries":    &graphql.Field{Type: graphql.NewList(statGroupType)},
			"cities":       &graphql.Field{Type: graphql.NewList(statGroupType)},
			"institutions": &graphql.Field{Type: graphql.NewList(statGroupType)},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Place",
		Fields: graphql.Fields{
			"name":      &graphql.Field{Type: graphql.String},
			"longitude": &graphql.Field{Type: graphql.Float},
			"latitude":  &graphql.Field{Type: graphql.Float},
		},
	})

	objectArgs := boundsArgs()
	objectArgs["page"] = &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1}
	objectArgs["page_size"] = &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"arcs": &graphql.Field{
				Type:        graphql.NewList(arcType),
				Description: "Provenance arcs of the objects inside a viewport",
				Args:        boundsArgs(),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					bounds, err := boundsFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					arcs, err := deps.Objects.Arcs(p.Context, bounds)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(arcs))
					for _, a := range arcs {
						ids := make([]string, 0, len(a.Members))
						for _, m := range a.Members {
							ids = append(ids, m.ID)
						}
						out = append(out, map[string]interface{}{
							"key":         a.Key,
							"source":      a.Source,
							"target":      a.Target,
							"origin":      a.OriginName,
							"destination": a.DestinationName,
							"count":       a.Count,
							"width":       provenance.ArcWidth(a.Count),
							"object_ids":  ids,
						})
					}
					return out, nil
				},
			},
			"objects": &graphql.Field{
				Type:        objectPageType,
				Description: "One page of objects inside a viewport",
				Args:        objectArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					bounds, err := boundsFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					page, err := deps.Objects.FetchPage(p.Context, domain.ObjectQuery{
						Bounds:   bounds,
						Page:     p.Args["page"].(int),
						PageSize: p.Args["page_size"].(int),
					})
					if err != nil {
						return nil, err
					}
					objects := make([]map[string]interface{}, 0, len(page.Objects))
					for i := range page.Objects {
						objects = append(objects, objectFields(&page.Objects[i]))
					}
					return map[string]interface{}{
						"objects":    objects,
						"page":       page.Page,
						"page_size":  page.PageSize,
						"page_count": page.PageCount,
						"total":      page.Total,
					}, nil
				},
			},
			"stats": &graphql.Field{
				Type:        statsType,
				Description: "Object counts by country, city and institution",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Stats.Summary(p.Context)
				},
			},
			"search": &graphql.Field{
				Type:        placeType,
				Description: "Geocode a place name; null when nothing matches",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Search == nil {
						return nil, domain.ErrMissingToken
					}
					q := p.Args["query"].(string)
					if len(q) > maxQueryLength {
						return nil, fmt.Errorf("query too long (max %d characters)", maxQueryLength)
					}
					res, err := deps.Search.Search(p.Context, q)
					if err != nil || res == nil {
						return nil, err
					}
					return res, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// objectFields flattens an object for the GraphQL default resolver.
func objectFields(o *domain.MuseumObject) map[string]interface{} {
	url, text := o.LinkInfo()
	return map[string]interface{}{
		"id":               o.ID,
		"title":            o.Title,
		"img_url":          o.ImageURL,
		"inventory_number": o.InventoryNumber,
		"place_name":       o.PlaceName,
		"city_en":          o.City,
		"country_en":       o.Country,
		"longitude":        o.Longitude,
		"latitude":         o.Latitude,
		"institution": map[string]interface{}{
			"name":       o.Institution.Name,
			"place":      o.Institution.Place,
			"city_en":    o.Institution.City,
			"country_en": o.Institution.Country,
			"longitude":  o.Institution.Longitude,
			"latitude":   o.Institution.Latitude,
		},
		"link_url":  url,
		"link_text": text,
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
