package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/usecases"
	"github.com/samirrijal/groundwatch/internal/core/viewstate"
	"github.com/samirrijal/groundwatch/internal/pkg/geospatial"
)

// viewStateMap flattens a ViewState for the default graphql resolvers.
func viewStateMap(st viewstate.ViewState) map[string]interface{} {
	m := map[string]interface{}{
		"zoom":           st.Zoom,
		"selectedLayers": st.SelectedLayers.Slice(),
	}
	if c, ok := st.Center(); ok {
		m["latitude"] = c.Latitude
		m["longitude"] = c.Longitude
	}
	if nav := st.PendingNavigation; nav != nil {
		n := map[string]interface{}{"latitude": nav.Latitude, "longitude": nav.Longitude}
		if nav.Zoom != nil {
			n["zoom"] = *nav.Zoom
		}
		m["pendingNavigation"] = n
	}
	return m
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

	navigationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Navigation",
		Fields: graphql.Fields{
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
			"zoom":      &graphql.Field{Type: graphql.Float},
		},
	})

	viewStateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ViewState",
		Fields: graphql.Fields{
			"latitude":          &graphql.Field{Type: graphql.Float},
			"longitude":         &graphql.Field{Type: graphql.Float},
			"zoom":              &graphql.Field{Type: graphql.Int},
			"selectedLayers":    &graphql.Field{Type: graphql.NewList(graphql.String)},
			"pendingNavigation": &graphql.Field{Type: navigationType},
		},
	})

	layerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Layer",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"name":          &graphql.Field{Type: graphql.String},
			"color":         &graphql.Field{Type: graphql.String},
			"geometry_kind": &graphql.Field{Type: graphql.String},
			"feature_count": &graphql.Field{Type: graphql.Int},
		},
	})

	observationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Observation",
		Fields: graphql.Fields{
			"layer_id": &graphql.Field{Type: graphql.String},
			"name":     &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: geoPointType},
			"distance": &graphql.Field{Type: graphql.Float},
		},
	})

	session := func(p graphql.ResolveParams) (*usecases.Session, error) {
		id, _ := p.Args["session"].(string)
		return deps.Sessions.Get(id)
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"viewState": &graphql.Field{
				Type:        viewStateType,
				Description: "Current view state of a map session",
				Args: graphql.FieldConfigArgument{
					"session": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sess, err := session(p)
					if err != nil {
						return nil, err
					}
					return viewStateMap(sess.Store.Read()), nil
				},
			},
			"layers": &graphql.Field{
				Type:        graphql.NewList(layerType),
				Description: "Layer catalogue",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Layers.List(p.Context)
				},
			},
			"nearby": &graphql.Field{
				Type:        graphql.NewList(observationType),
				Description: "Layer features near a point, nearest first",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 5000.0},
					"layers": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					var layers []string
					if raw, ok := p.Args["layers"].([]interface{}); ok {
						for _, v := range raw {
							if s, ok := v.(string); ok {
								layers = append(layers, s)
							}
						}
					}
					return deps.Layers.Nearby(p.Context, lat, lon, radius, layers)
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"navigate": &graphql.Field{
				Type:        viewStateType,
				Description: "Ask the session's map to move",
				Args: graphql.FieldConfigArgument{
					"session":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"latitude":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"longitude": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"zoom":      &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sess, err := session(p)
					if err != nil {
						return nil, err
					}
					lat := p.Args["latitude"].(float64)
					lon := p.Args["longitude"].(float64)
					if !geospatial.ValidLatLon(lat, lon) {
						return nil, domain.NewValidationError("latitude", "latitude/longitude out of range")
					}
					var zoom *float64
					if z, ok := p.Args["zoom"].(float64); ok {
						zoom = &z
					}
					sess.Store.IssueNavigation(lat, lon, zoom)
					return viewStateMap(sess.Store.Read()), nil
				},
			},
			"toggleLayer": &graphql.Field{
				Type:        viewStateType,
				Description: "Add or remove a layer from the session's selection",
				Args: graphql.FieldConfigArgument{
					"session": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"layer":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"enabled": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Boolean)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sess, err := session(p)
					if err != nil {
						return nil, err
					}
					usecases.ToggleLayer(sess.Store, p.Args["layer"].(string), p.Args["enabled"].(bool))
					return viewStateMap(sess.Store.Read()), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
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
