package domain_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

func validQuery() domain.SearchQuery {
	return domain.SearchQuery{
		Lat:      51.5,
		Lng:      -0.12,
		Dropoff:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Pickup:   time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC),
		BagCount: 1,
	}
}

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *domain.SearchQuery)
		field  string
	}{
		{"valid", func(q *domain.SearchQuery) {}, ""},
		{"lat too high", func(q *domain.SearchQuery) { q.Lat = 90.01 }, "lat"},
		{"lng too low", func(q *domain.SearchQuery) { q.Lng = -180.5 }, "lng"},
		{"lat not a number", func(q *domain.SearchQuery) { q.Lat = math.NaN() }, "lat"},
		{"no bags", func(q *domain.SearchQuery) { q.BagCount = 0 }, "bag_count"},
		{"negative radius", func(q *domain.SearchQuery) { q.RadiusKm = -1 }, "radius_km"},
		{"missing dropoff", func(q *domain.SearchQuery) { q.Dropoff = time.Time{} }, "dropoff"},
		{"pickup equals dropoff", func(q *domain.SearchQuery) { q.Pickup = q.Dropoff }, "pickup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuery()
			tt.mutate(&q)
			err := q.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestSearchQuery_Validate_BoundaryValuesAccepted(t *testing.T) {
	q := validQuery()
	q.Lat, q.Lng = -90, 180
	assert.NoError(t, q.Validate())
}

func TestValidationError_Error_SortedFields(t *testing.T) {
	err := &domain.ValidationError{Fields: map[string]string{"lng": "b", "lat": "a"}}
	assert.Equal(t, "validation failed: lat: a; lng: b", err.Error())
}

func TestTimeOfDay(t *testing.T) {
	tod, err := domain.ParseTimeOfDay("08:30")
	require.NoError(t, err)
	assert.Equal(t, domain.NewTimeOfDay(8, 30), tod)
	assert.Equal(t, "08:30", tod.String())

	withSeconds, err := domain.ParseTimeOfDay("23:59:59")
	require.NoError(t, err)
	assert.Equal(t, "23:59:59", withSeconds.String())

	_, err = domain.ParseTimeOfDay("25:00")
	assert.Error(t, err)

	at := time.Date(2030, 1, 2, 17, 45, 0, 0, time.UTC)
	assert.Equal(t, domain.NewTimeOfDay(17, 45), domain.TimeOfDayOf(at))
}

func TestTimeOfDay_JSON(t *testing.T) {
	sp := domain.Stashpoint{ID: "x", OpenFrom: domain.NewTimeOfDay(7, 5), OpenUntil: domain.NewTimeOfDay(21, 0)}
	data, err := json.Marshal(sp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"open_from":"07:05"`)

	var back domain.Stashpoint
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sp.OpenFrom, back.OpenFrom)
	assert.Equal(t, sp.OpenUntil, back.OpenUntil)
}

func TestParseDateTime(t *testing.T) {
	want := time.Date(2023, 4, 20, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2023-04-20T10:00:00Z", want},
		{"2023-04-20T10:00:00", want},
		{"2023-04-20 10:00:00", want},
		{"2023-04-20T10:00", want},
		{"2023-04-20T12:00:00+02:00", want},
		{"2023-04-20T10:00:00.250Z", want.Add(250 * time.Millisecond)},
		{"2023-04-20", time.Date(2023, 4, 20, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := domain.ParseDateTime(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	for _, bad := range []string{"", "tomorrow", "2023-13-01T10:00:00", "20/04/2023"} {
		_, err := domain.ParseDateTime(bad)
		assert.Error(t, err, bad)
	}
}
