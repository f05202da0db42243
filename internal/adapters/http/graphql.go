package http

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	stashpointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stashpoint",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"address":     &graphql.Field{Type: graphql.String},
			"postal_code": &graphql.Field{Type: graphql.String},
			"latitude":    &graphql.Field{Type: graphql.Float},
			"longitude":   &graphql.Field{Type: graphql.Float},
			"capacity":    &graphql.Field{Type: graphql.Int},
			"open_from":   &graphql.Field{Type: graphql.String},
			"open_until":  &graphql.Field{Type: graphql.String},
		},
	})

	availableType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AvailableStashpoint",
		Fields: graphql.Fields{
			"id":                 &graphql.Field{Type: graphql.String},
			"name":               &graphql.Field{Type: graphql.String},
			"address":            &graphql.Field{Type: graphql.String},
			"latitude":           &graphql.Field{Type: graphql.Float},
			"longitude":          &graphql.Field{Type: graphql.Float},
			"distance_km":        &graphql.Field{Type: graphql.Float},
			"capacity":           &graphql.Field{Type: graphql.Int},
			"available_capacity": &graphql.Field{Type: graphql.Int},
			"open_from":          &graphql.Field{Type: graphql.String},
			"open_until":         &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"availableStashpoints": &graphql.Field{
				Type:        graphql.NewList(availableType),
				Description: "Stashpoints that can take the bags for the whole window, nearest first",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"dropoff":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"pickup":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"bag_count": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"radius_km": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := domain.SearchQuery{
						Lat:      p.Args["lat"].(float64),
						Lng:      p.Args["lng"].(float64),
						BagCount: p.Args["bag_count"].(int),
					}
					if r, ok := p.Args["radius_km"].(float64); ok {
						if !(r > 0) {
							return nil, errors.New("radius_km must be a positive number")
						}
						q.RadiusKm = r
					}
					var err error
					if q.Dropoff, err = domain.ParseDateTime(p.Args["dropoff"].(string)); err != nil {
						return nil, fmt.Errorf("dropoff: %w", err)
					}
					if q.Pickup, err = domain.ParseDateTime(p.Args["pickup"].(string)); err != nil {
						return nil, fmt.Errorf("pickup: %w", err)
					}
					if err := q.Validate(); err != nil {
						return nil, err
					}

					results, err := deps.Search.FindAvailable(p.Context, q)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(results))
					for _, r := range results {
						out = append(out, map[string]interface{}{
							"id":                 r.ID,
							"name":               r.Name,
							"address":            r.Address,
							"latitude":           r.Latitude,
							"longitude":          r.Longitude,
							"distance_km":        r.DistanceKm,
							"capacity":           r.Capacity,
							"available_capacity": r.AvailableCapacity,
							"open_from":          r.OpenFrom.String(),
							"open_until":         r.OpenUntil.String(),
						})
					}
					return out, nil
				},
			},
			"stashpoint": &graphql.Field{
				Type:        stashpointType,
				Description: "Get a stashpoint by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sp, err := deps.Stashpoints.GetByID(p.Context, p.Args["id"].(string))
					if errors.Is(err, domain.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					m := map[string]interface{}{
						"id":          sp.ID,
						"name":        sp.Name,
						"address":     sp.Address,
						"postal_code": sp.PostalCode,
						"latitude":    sp.Latitude,
						"longitude":   sp.Longitude,
						"capacity":    sp.Capacity,
						"open_from":   sp.OpenFrom.String(),
						"open_until":  sp.OpenUntil.String(),
					}
					if sp.Description != "" {
						m["description"] = sp.Description
					}
					return m, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
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
