package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/stashpoint/internal/adapters/http"
	"github.com/samirrijal/stashpoint/internal/adapters/memory"
	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/core/ports"
	"github.com/samirrijal/stashpoint/internal/core/usecases"
)

// ---- Fixtures ----

func day(h int) time.Time { return time.Date(2025, 6, 1, h, 0, 0, 0, time.UTC) }

func fixtureStore() *memory.Store {
	open := domain.NewTimeOfDay(8, 0)
	closeAt := domain.NewTimeOfDay(22, 0)

	store := memory.NewStore()
	store.Replace(
		[]domain.Stashpoint{
			{ID: "far", Name: "King's Cross", Address: "Euston Rd", PostalCode: "N1C 4QP", Latitude: 51.5300, Longitude: -0.1240, Capacity: 5, OpenFrom: open, OpenUntil: closeAt},
			{ID: "near", Name: "Trafalgar", Address: "Strand", PostalCode: "WC2N 5DN", Description: "By the fountains", Latitude: 51.5080, Longitude: -0.1278, Capacity: 10, OpenFrom: open, OpenUntil: closeAt},
			{ID: "full", Name: "Covent Garden", Address: "James St", Latitude: 51.5120, Longitude: -0.1230, Capacity: 2, OpenFrom: open, OpenUntil: closeAt},
			{ID: "late", Name: "Soho", Address: "Dean St", Latitude: 51.5130, Longitude: -0.1320, Capacity: 10, OpenFrom: domain.NewTimeOfDay(12, 0), OpenUntil: closeAt},
		},
		[]domain.Booking{
			{ID: "b1", CustomerID: "c1", StashpointID: "near", BagCount: 3, DropoffTime: day(9), PickupTime: day(12)},
			{ID: "b2", CustomerID: "c1", StashpointID: "full", BagCount: 4, DropoffTime: day(9), PickupTime: day(20)},
		},
	)
	return store
}

func makeDeps(store *memory.Store, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Search:      usecases.NewSearchService(store, store, store, nil, nil, usecases.DefaultSearchOptions()),
		Stashpoints: usecases.NewStashpointService(store, nil),
		Audit:       usecases.NewAuditService(store, store, nil),
		Version:     "test",
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps, handler.RouterConfig{RequestTimeout: 5 * time.Second})
	return app
}

func searchURL(params map[string]string) string {
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	return "/api/v1/stashpoints?" + v.Encode()
}

func validParams() map[string]string {
	return map[string]string{
		"lat":       "51.5074",
		"lng":       "-0.1278",
		"dropoff":   "2025-06-01T10:00:00Z",
		"pickup":    "2025-06-01T18:00:00Z",
		"bag_count": "2",
		"radius_km": "5",
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

type apiError struct {
	Status int               `json:"status"`
	Code   string            `json:"code"`
	Errors map[string]string `json:"errors"`
}

func decodeError(t *testing.T, body io.Reader) apiError {
	t.Helper()
	var e apiError
	if err := json.Unmarshal(readBody(t, body), &e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

// failingStashpoints fails the location stage with a fixed error.
type failingStashpoints struct {
	*memory.Store
	err error
}

func (f failingStashpoints) FindCandidates(ctx context.Context, origin domain.GeoPoint, radiusKm float64, w domain.Window) ([]domain.Candidate, error) {
	return nil, f.err
}

var _ ports.StashpointRepository = failingStashpoints{}

// ---- Search handler tests ----

func TestSearchStashpoints_Success(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	resp, err := app.Test(httptest.NewRequest("GET", searchURL(validParams()), nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected Cache-Control no-store, got %q", cc)
	}

	var results []domain.SearchResult
	if err := json.Unmarshal(readBody(t, resp.Body), &results); err != nil {
		t.Fatal(err)
	}
	// "full" has 4 bags booked against capacity 2; "late" opens at noon.
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	if results[0].ID != "near" || results[1].ID != "far" {
		t.Errorf("expected near then far, got %s then %s", results[0].ID, results[1].ID)
	}
	if results[0].DistanceKm != 0.07 {
		t.Errorf("expected distance 0.07, got %v", results[0].DistanceKm)
	}
	if results[0].AvailableCapacity != 7 {
		t.Errorf("expected available capacity 7, got %d", results[0].AvailableCapacity)
	}
	if results[0].OpenFrom.String() != "08:00" {
		t.Errorf("expected open_from 08:00, got %s", results[0].OpenFrom)
	}
}

func TestSearchStashpoints_DefaultRadius(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	params := validParams()
	delete(params, "radius_km")
	resp, _ := app.Test(httptest.NewRequest("GET", searchURL(params), nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var results []domain.SearchResult
	json.Unmarshal(readBody(t, resp.Body), &results)
	if len(results) != 2 {
		t.Errorf("expected 2 results within the default radius, got %d", len(results))
	}
}

func TestSearchStashpoints_EmptyResultIsArray(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	params := validParams()
	params["lat"] = "40.4168"
	params["lng"] = "-3.7038"
	resp, _ := app.Test(httptest.NewRequest("GET", searchURL(params), nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := string(bytes.TrimSpace(readBody(t, resp.Body))); body != "[]" {
		t.Errorf("expected [], got %s", body)
	}
}

func TestSearchStashpoints_MissingParams(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/v1/stashpoints", nil), -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	apiErr := decodeError(t, resp.Body)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request error, got %s", apiErr.Code)
	}
	for _, key := range []string{"lat", "lng", "bag_count", "dropoff", "pickup"} {
		if apiErr.Errors[key] == "" {
			t.Errorf("expected an error for %s, got %v", key, apiErr.Errors)
		}
	}
	if _, ok := apiErr.Errors["radius_km"]; ok {
		t.Error("radius_km is optional")
	}
}

func TestSearchStashpoints_InvalidParams(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"lat not a float", "lat", "north"},
		{"lat out of range", "lat", "91"},
		{"lng out of range", "lng", "-180.5"},
		{"bag count zero", "bag_count", "0"},
		{"bag count not an int", "bag_count", "2.5"},
		{"radius zero", "radius_km", "0"},
		{"radius negative", "radius_km", "-3"},
		{"radius not a float", "radius_km", "far"},
		{"dropoff malformed", "dropoff", "tomorrow"},
		{"pickup before dropoff", "pickup", "2025-06-01T09:00:00Z"},
		{"pickup equals dropoff", "pickup", "2025-06-01T10:00:00"},
	}

	app := setupApp(makeDeps(fixtureStore()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			params[tt.key] = tt.value

			resp, _ := app.Test(httptest.NewRequest("GET", searchURL(params), nil), -1)
			if resp.StatusCode != 400 {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			apiErr := decodeError(t, resp.Body)
			if apiErr.Errors[tt.key] == "" {
				t.Errorf("expected an error for %s, got %v", tt.key, apiErr.Errors)
			}
			if len(apiErr.Errors) != 1 {
				t.Errorf("expected only %s to be rejected, got %v", tt.key, apiErr.Errors)
			}
		})
	}
}

func TestSearchStashpoints_OffsetDatetime(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	// 11:00+01:00 is 10:00 UTC; the result must match the UTC query.
	params := validParams()
	params["dropoff"] = "2025-06-01T11:00:00+01:00"
	resp, _ := app.Test(httptest.NewRequest("GET", searchURL(params), nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var results []domain.SearchResult
	json.Unmarshal(readBody(t, resp.Body), &results)
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestSearchStashpoints_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"deadline", context.DeadlineExceeded, 504, "timeout"},
		{"storage", io.ErrUnexpectedEOF, 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := fixtureStore()
			broken := failingStashpoints{Store: store, err: tt.err}
			deps := makeDeps(store, func(d *handler.Dependencies) {
				d.Search = usecases.NewSearchService(broken, store, nil, nil, nil, usecases.DefaultSearchOptions())
			})
			app := setupApp(deps)

			resp, _ := app.Test(httptest.NewRequest("GET", searchURL(validParams()), nil), -1)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			apiErr := decodeError(t, resp.Body)
			if apiErr.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, apiErr.Code)
			}
		})
	}
}

// ---- Stashpoint handler tests ----

func TestGetStashpoint_Success(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/v1/stashpoints/near", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc == "" {
		t.Error("expected a Cache-Control header")
	}

	var sp handler.StashpointResponse
	json.Unmarshal(readBody(t, resp.Body), &sp)
	if sp.ID != "near" || sp.PostalCode != "WC2N 5DN" {
		t.Errorf("unexpected stashpoint %+v", sp)
	}
	if sp.Description == nil || *sp.Description != "By the fountains" {
		t.Errorf("expected description, got %v", sp.Description)
	}
}

func TestGetStashpoint_NullDescription(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/v1/stashpoints/far", nil), -1)
	var raw map[string]any
	json.Unmarshal(readBody(t, resp.Body), &raw)
	if v, ok := raw["description"]; !ok || v != nil {
		t.Errorf("expected description: null, got %v (present %v)", v, ok)
	}
}

func TestGetStashpoint_NotFound(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/v1/stashpoints/missing", nil), -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %s", apiErr.Code)
	}
}

// ---- Audit handler tests ----

func TestOverbooked(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	req := httptest.NewRequest("GET", "/api/v1/audit/overbooked?dropoff=2025-06-01T10:00:00Z&pickup=2025-06-01T18:00:00Z", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var anomalies []domain.CapacityAnomaly
	json.Unmarshal(readBody(t, resp.Body), &anomalies)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if anomalies[0].StashpointID != "full" || anomalies[0].AvailableCapacity != -2 {
		t.Errorf("unexpected anomaly %+v", anomalies[0])
	}
}

func TestOverbooked_InvertedWindow(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	req := httptest.NewRequest("GET", "/api/v1/audit/overbooked?dropoff=2025-06-01T18:00:00Z&pickup=2025-06-01T10:00:00Z", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- GraphQL tests ----

func postGraphQL(t *testing.T, app *fiber.App, query string) map[string]any {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"query": query})
	req := httptest.NewRequest("POST", "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result map[string]any
	if err := json.Unmarshal(readBody(t, resp.Body), &result); err != nil {
		t.Fatal(err)
	}
	return result
}

func TestGraphQL_AvailableStashpoints(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	result := postGraphQL(t, app, `{
		availableStashpoints(lat: 51.5074, lng: -0.1278, dropoff: "2025-06-01T10:00:00Z", pickup: "2025-06-01T18:00:00Z", bag_count: 2, radius_km: 5.0) {
			id distance_km available_capacity open_from
		}
	}`)
	if result["errors"] != nil {
		t.Fatalf("unexpected errors: %v", result["errors"])
	}

	data := result["data"].(map[string]any)
	list := data["availableStashpoints"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 results, got %d", len(list))
	}
	first := list[0].(map[string]any)
	if first["id"] != "near" || first["open_from"] != "08:00" {
		t.Errorf("unexpected first result %v", first)
	}
}

func TestGraphQL_AvailableStashpoints_Invalid(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	result := postGraphQL(t, app, `{
		availableStashpoints(lat: 51.5, lng: -0.12, dropoff: "2025-06-01T18:00:00Z", pickup: "2025-06-01T10:00:00Z", bag_count: 2) { id }
	}`)
	if result["errors"] == nil {
		t.Fatal("expected errors for an inverted window")
	}
}

func TestGraphQL_Stashpoint(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	result := postGraphQL(t, app, `{ stashpoint(id: "near") { id name capacity } }`)
	data := result["data"].(map[string]any)
	sp := data["stashpoint"].(map[string]any)
	if sp["name"] != "Trafalgar" {
		t.Errorf("expected Trafalgar, got %v", sp["name"])
	}

	result = postGraphQL(t, app, `{ stashpoint(id: "missing") { id } }`)
	data = result["data"].(map[string]any)
	if data["stashpoint"] != nil {
		t.Errorf("expected null for a missing stashpoint, got %v", data["stashpoint"])
	}
}

// ---- Health tests ----

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeConn bool

func (f fakeConn) Connected() bool { return bool(f) }

func TestHealthcheck(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/healthcheck", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	json.Unmarshal(readBody(t, resp.Body), &body)
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		db     error
		cache  error
		status int
	}{
		{"all up", nil, nil, 200},
		{"cache down still ready", nil, io.EOF, 200},
		{"database down", io.EOF, nil, 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := makeDeps(fixtureStore(), func(d *handler.Dependencies) {
				d.DB = fakePinger{tt.db}
				d.Cache = fakePinger{tt.cache}
				d.NATS = fakeConn(true)
			})
			app := setupApp(deps)

			resp, _ := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			var body struct {
				Checks map[string]string `json:"checks"`
			}
			json.Unmarshal(readBody(t, resp.Body), &body)
			if body.Checks["nats"] != "ok" {
				t.Errorf("expected nats ok, got %q", body.Checks["nats"])
			}
		})
	}
}

func TestRequestIDHeader(t *testing.T) {
	app := setupApp(makeDeps(fixtureStore()))

	resp, _ := app.Test(httptest.NewRequest("GET", "/healthcheck", nil), -1)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}
