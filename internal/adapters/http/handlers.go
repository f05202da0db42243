package http

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// StashpointResponse is the public shape of a single stashpoint.
type StashpointResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Address     string  `json:"address"`
	PostalCode  string  `json:"postal_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Capacity    int     `json:"capacity"`
	OpenFrom    string  `json:"open_from"`
	OpenUntil   string  `json:"open_until"`
}

func newStashpointResponse(sp *domain.Stashpoint) StashpointResponse {
	resp := StashpointResponse{
		ID:         sp.ID,
		Name:       sp.Name,
		Address:    sp.Address,
		PostalCode: sp.PostalCode,
		Latitude:   sp.Latitude,
		Longitude:  sp.Longitude,
		Capacity:   sp.Capacity,
		OpenFrom:   sp.OpenFrom.String(),
		OpenUntil:  sp.OpenUntil.String(),
	}
	if sp.Description != "" {
		resp.Description = &sp.Description
	}
	return resp
}

// SearchStashpointsHandler finds stashpoints that can take the requested
// bags for the requested window, nearest first.
func SearchStashpointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, fields := parseSearchQuery(c)
		if len(fields) > 0 {
			return errValidation(c, fields)
		}

		results, err := deps.Search.FindAvailable(c.UserContext(), q)
		if err != nil {
			return errUpstream(c, err)
		}
		return c.JSON(results)
	}
}

// GetStashpointHandler returns a single stashpoint by ID.
func GetStashpointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "stashpoint id is required")
		}

		sp, err := deps.Stashpoints.GetByID(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errNotFound(c, "stashpoint not found")
			}
			return errUpstream(c, err)
		}
		return c.JSON(newStashpointResponse(sp))
	}
}

// OverbookedHandler lists stashpoints whose bookings exceed their capacity
// during the given window.
func OverbookedHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fields := make(map[string]string)
		dropoff := parseDateTimeParam(c, "dropoff", fields)
		pickup := parseDateTimeParam(c, "pickup", fields)
		if len(fields) == 0 && !pickup.After(dropoff) {
			fields["pickup"] = "Pickup datetime must be after dropoff datetime."
		}
		if len(fields) > 0 {
			return errValidation(c, fields)
		}

		anomalies, err := deps.Audit.FindOverbooked(c.UserContext(), domain.Window{Dropoff: dropoff, Pickup: pickup})
		if err != nil {
			return errUpstream(c, err)
		}
		return c.JSON(anomalies)
	}
}

// HealthcheckHandler is the plain liveness probe load balancers expect.
func HealthcheckHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	}
}

// parseSearchQuery reads the search parameters and returns every problem
// found, keyed by parameter name. A missing radius_km leaves RadiusKm at
// zero so the search service applies its default.
func parseSearchQuery(c *fiber.Ctx) (domain.SearchQuery, map[string]string) {
	var q domain.SearchQuery
	fields := make(map[string]string)

	if v, err := strconv.ParseFloat(strings.TrimSpace(c.Query("lat")), 64); err != nil {
		fields["lat"] = "Invalid or missing 'lat' parameter. Must be a float."
	} else {
		q.Lat = v
	}

	if v, err := strconv.ParseFloat(strings.TrimSpace(c.Query("lng")), 64); err != nil {
		fields["lng"] = "Invalid or missing 'lng' parameter. Must be a float."
	} else {
		q.Lng = v
	}

	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("bag_count"))); err != nil {
		fields["bag_count"] = "Invalid or missing 'bag_count' parameter. Must be an integer > 0."
	} else {
		q.BagCount = v
	}

	if raw := strings.TrimSpace(c.Query("radius_km")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil:
			fields["radius_km"] = "Invalid radius format. Must be a float."
		case !(v > 0):
			fields["radius_km"] = "Search radius must be a positive number."
		default:
			q.RadiusKm = v
		}
	}

	q.Dropoff = parseDateTimeParam(c, "dropoff", fields)
	q.Pickup = parseDateTimeParam(c, "pickup", fields)

	// Range checks only for values that parsed.
	var verr *domain.ValidationError
	if err := q.Validate(); errors.As(err, &verr) {
		for k, msg := range verr.Fields {
			if _, seen := fields[k]; !seen {
				fields[k] = msg
			}
		}
	}
	return q, fields
}

func parseDateTimeParam(c *fiber.Ctx, key string, fields map[string]string) time.Time {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		fields[key] = fmt.Sprintf("Missing '%s' query parameter.", key)
		return time.Time{}
	}
	t, err := domain.ParseDateTime(raw)
	if err != nil {
		fields[key] = fmt.Sprintf("Invalid %s datetime format. Must be ISO 8601 (e.g., 2023-04-20T10:00:00Z).", key)
		return time.Time{}
	}
	return t
}
