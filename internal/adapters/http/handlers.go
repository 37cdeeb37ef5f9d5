package http

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/usecases"
	"github.com/samirrijal/groundwatch/internal/core/viewstate"
	"github.com/samirrijal/groundwatch/internal/pkg/geospatial"
)

// SessionView is the JSON representation of a map session.
type SessionView struct {
	SessionID string              `json:"session_id"`
	CreatedAt time.Time           `json:"created_at"`
	State     viewstate.ViewState `json:"state"`
}

func sessionView(s *usecases.Session) SessionView {
	return SessionView{SessionID: s.ID, CreatedAt: s.CreatedAt, State: s.Store.Read()}
}

// lookupSession resolves :id or writes the error response.
func lookupSession(c *fiber.Ctx, deps *Dependencies) (*usecases.Session, error) {
	sess, err := deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return nil, errFromDomain(c, err)
	}
	return sess, nil
}

// CreateSessionHandler opens a map page session with a fresh view state.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := deps.Sessions.Create(c.UserContext())
		c.Location("/v1/sessions/" + sess.ID)
		return c.Status(fiber.StatusCreated).JSON(sessionView(sess))
	}
}

// GetSessionHandler returns the current view state of a session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		return c.JSON(sessionView(sess))
	}
}

// DeleteSessionHandler tears a session down when its page goes away.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Delete(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type navigationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Zoom      *float64 `json:"zoom"`
}

// IssueNavigationHandler asks the session's map to move. A missing zoom
// keeps the current one.
func IssueNavigationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}

		var req navigationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Latitude == nil || req.Longitude == nil {
			return errBadRequest(c, "latitude and longitude are required")
		}
		if !geospatial.ValidLatLon(*req.Latitude, *req.Longitude) {
			return errBadRequest(c, "latitude must be within [-90, 90] and longitude within [-180, 180]")
		}

		sess.Store.IssueNavigation(*req.Latitude, *req.Longitude, req.Zoom)
		return c.Status(fiber.StatusAccepted).JSON(sessionView(sess))
	}
}

// TakeNavigationHandler consumes the pending navigation, if any. It serves
// map surfaces that poll instead of holding a socket.
func TakeNavigationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		nav, ok := sess.Store.TakeNavigation()
		if !ok {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(nav)
	}
}

type goToRequest struct {
	Latitude  json.RawMessage `json:"latitude"`
	Longitude json.RawMessage `json:"longitude"`
}

// rawInput returns a JSON value as the text a user typed: strings are
// unquoted, numbers are kept verbatim.
func rawInput(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if bytes.Equal(raw, []byte("null")) {
		return ""
	}
	return string(raw)
}

// GoToCoordinatesHandler parses typed coordinates and navigates to them.
func GoToCoordinatesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}

		var req goToRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		if err := usecases.GoToCoordinates(sess.Store, rawInput(req.Latitude), rawInput(req.Longitude), deps.Sessions.NavigationZoom()); err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(sessionView(sess))
	}
}

// ToggleLayerHandler adds (PUT) or removes (DELETE) a layer from the
// session's selection.
func ToggleLayerHandler(deps *Dependencies, enabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}

		layer, err := url.PathUnescape(c.Params("layer"))
		if err != nil || strings.TrimSpace(layer) == "" {
			return errBadRequest(c, "layer id is required")
		}

		usecases.ToggleLayer(sess.Store, layer, enabled)
		return c.JSON(sessionView(sess))
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

// SearchHandler feeds the session's location search box. The lookup runs
// asynchronously after the debounce delay; the response only says whether
// the input was long enough to be scheduled.
func SearchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}

		var req searchRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		scheduled := sess.Search.Input(req.Query)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"scheduled": scheduled})
	}
}

// GeocodeHandler resolves a place name directly.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		if len(query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		results, err := deps.Geocode.Search(c.UserContext(), query)
		if err != nil {
			return errFromDomain(c, err)
		}
		if results == nil {
			results = []domain.GeocodeResult{}
		}
		return c.JSON(results)
	}
}

// ListLayersHandler returns the layer catalogue.
func ListLayersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		layers, err := deps.Layers.List(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		if layers == nil {
			layers = []domain.Layer{}
		}
		return c.JSON(layers)
	}
}

// BasemapsHandler returns the configured tile providers.
func BasemapsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		basemaps := deps.Basemaps
		if basemaps == nil {
			basemaps = []domain.Basemap{}
		}
		return c.JSON(basemaps)
	}
}

// GetLayerHandler returns one layer as a GeoJSON FeatureCollection.
func GetLayerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := url.PathUnescape(c.Params("id"))
		if err != nil || id == "" {
			return errBadRequest(c, "layer id is required")
		}

		fc, err := deps.Layers.Features(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}

		data, err := fc.MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}

// NearbyObservationsHandler lists layer features around a point, nearest
// first.
func NearbyObservationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
		if errLat != nil || errLon != nil {
			return errBadRequest(c, "lat and lon are required")
		}
		radius := c.QueryFloat("radius", 0)
		if radius < 0 {
			return errBadRequest(c, "radius must not be negative")
		}

		var layerIDs []string
		if raw := c.Query("layers"); raw != "" {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					layerIDs = append(layerIDs, id)
				}
			}
		}

		obs, err := deps.Layers.Nearby(c.UserContext(), lat, lon, radius, layerIDs)
		if err != nil {
			return errFromDomain(c, err)
		}
		if obs == nil {
			obs = []domain.Observation{}
		}
		return c.JSON(obs)
	}
}

// ListAnalysesHandler returns the archive, newest first.
func ListAnalysesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 20)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		items, err := deps.Analyses.List(c.UserContext(), offset, limit)
		if err != nil {
			return errFromDomain(c, err)
		}
		total, err := deps.Analyses.Count(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		if items == nil {
			items = []domain.Analysis{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: items, Pagination: pg})
	}
}

// DashboardHandler returns the signed-in overview.
func DashboardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ov, err := deps.Analyses.Overview(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(ov)
	}
}
