package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/", srv.Client(), time.UTC)
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	for _, bad := range []string{"", "  ", "ftp://example.com", "://nope"} {
		_, err := NewClient(bad, nil, nil)
		assert.Error(t, err, bad)
	}
	c, err := NewClient("https://api.example.com/v1/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", c.BaseURL())
}

func TestUpcomingEventsShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"null body", `null`, []string{}},
		{"null events", `{"events": null}`, []string{}},
		{"empty object", `{}`, []string{}},
		{"bare array", `[{"id":"1","summary":"A","start":"2024-05-05T09:00:00Z"}]`, []string{"A"}},
		{"items member", `{"items":[{"id":"1","summary":"A","start":"2024-05-05T09:00:00Z"}]}`, []string{"A"}},
		{
			"google objects and sorting",
			`{"events":[
				{"id":"2","summary":"late","start":{"dateTime":"2024-05-05T18:00:00+02:00"},"end":{"dateTime":"2024-05-05T19:00:00+02:00"}},
				{"id":"1","summary":"early","start":{"dateTime":"2024-05-05T08:00:00","timeZone":"UTC"}},
				{"id":"3","summary":"allday","start":{"date":"2024-05-04"}}
			]}`,
			[]string{"allday", "early", "late"},
		},
		{
			"legacy title and date",
			`{"events":[{"id":"9","title":"Legacy","date":"2024-05-06"}]}`,
			[]string{"Legacy"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			events, err := c.UpcomingEvents(context.Background(), "tok")
			require.NoError(t, err)
			got := make([]string, 0, len(events))
			for _, ev := range events {
				got = append(got, ev.Summary)
				assert.Equal(t, SourceID, ev.SourceID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpcomingEventsRequest(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendar/upcoming-events", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"events":[
			{"id":"a","summary":"ok","start":"2024-05-05T10:00:00Z","end":"2024-05-05T11:00:00Z"},
			{"id":"b","summary":"broken","start":"yesterday-ish"}
		]}`))
	})
	events, err := c.UpcomingEvents(context.Background(), "secret-token")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "ok", events[0].Summary)
	assert.Equal(t, time.Date(2024, 5, 5, 10, 0, 0, 0, time.UTC), events[0].Start.UTC())
	assert.Equal(t, time.Hour, events[0].End.Sub(events[0].Start))
	assert.False(t, events[0].AllDay)

	// Unparsable timestamps are kept but carry no start.
	assert.Equal(t, "broken", events[1].Summary)
	assert.False(t, events[1].HasStart())
}

func TestAllDayDatesUseDisplayZone(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"summary":"holiday","start":{"date":"2024-05-05","timeZone":"America/New_York"}}]`))
	}))
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, srv.Client(), seoul)
	require.NoError(t, err)

	events, err := c.UpcomingEvents(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].AllDay)
	assert.True(t, time.Date(2024, 5, 5, 0, 0, 0, 0, seoul).Equal(events[0].Start))
	assert.Equal(t, "KST", events[0].Start.Location().String())
}

func TestUnauthorized(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})
	_, err := c.UpcomingEvents(context.Background(), "old")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Equal(t, "token expired", se.Body)
}

func TestServerErrorIsNotUnauthorized(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Profile(context.Background(), "tok")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestProfile(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"u1","username":"ada","email":"ada@example.com",
			"created_at":"2024-01-02T03:04:05Z","updated_at":"2024-02-03T04:05:06Z"}`))
	})
	u, err := c.Profile(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "ada", u.DisplayName())
	assert.Equal(t, 2024, u.CreatedAt.Year())
}

func TestLinkURL(t *testing.T) {
	c, err := NewClient("https://api.example.com/v1", nil, nil)
	require.NoError(t, err)

	got, err := c.LinkURL("Google", "https://cal.example.com/auth/callback", "nonce-1")
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/v1/auth/google", u.Path)
	assert.Equal(t, "https://cal.example.com/auth/callback", u.Query().Get("redirect_uri"))
	assert.Equal(t, "nonce-1", u.Query().Get("state"))

	got, err = c.LinkURL("outlook", "", "")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1/auth/outlook", got)

	_, err = c.LinkURL("myspace", "", "")
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	tests := []struct {
		in     string
		ok     bool
		allDay bool
	}{
		{"2024-05-05T10:00:00Z", true, false},
		{"2024-05-05T10:00:00.123+09:00", true, false},
		{"2024-05-05T10:00:00", true, false},
		{"2024-05-05T10:00", true, false},
		{"2024-05-05 10:00:00", true, false},
		{"2024-05-05", true, true},
		{"", false, false},
		{"05/05/2024", false, false},
		{"2024-13-45", false, false},
	}
	for _, tt := range tests {
		_, allDay, ok := ParseTimestamp(tt.in, loc)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.allDay, allDay, tt.in)
	}
	naive, _, _ := ParseTimestamp("2024-05-05T10:00:00", loc)
	assert.Equal(t, loc, naive.Location())
}
