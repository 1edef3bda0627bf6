package dab

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-sync-srv/internal/models"
	"music-sync-srv/internal/search"
)

const testBase = "https://dab.test/api"

func newTestClient() (*Client, *httpmock.MockTransport) {
	transport := httpmock.NewMockTransport()
	c := NewClient("secret", time.Millisecond)
	c.HTTPClient = &http.Client{Transport: transport}
	c.BaseURL = testBase
	return c, transport
}

func TestFetcher(t *testing.T) {
	c, transport := newTestClient()
	transport.RegisterResponder("GET", `=~^https://dab\.test/api/search`,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
			assert.Equal(t, "Heroes David Bowie", req.URL.Query().Get("q"))
			assert.Equal(t, "15", req.URL.Query().Get("limit"))
			return httpmock.NewJsonResponse(200, map[string]any{
				"tracks": []map[string]any{
					{"id": 1, "title": "Heroes", "artist": "David Bowie", "albumTitle": "Heroes",
						"audioQuality": map[string]any{"maximumSamplingRate": 44.1, "maximumBitDepth": 16}},
					{"id": "2", "title": "Heroes", "artist": "David Bowie", "albumTitle": "Heroes",
						"audioQuality": map[string]any{"maximumSamplingRate": 96, "maximumBitDepth": 24}},
					{"id": nil, "title": "Broken"},
				},
			})
		})

	got, err := c.Fetcher(15)(context.Background(), search.Query{Title: "Heroes", Artist: "David Bowie"})
	require.NoError(t, err)
	assert.Equal(t, []models.RemoteCandidate{
		{Title: "Heroes", Artist: "David Bowie", Album: "Heroes", RemoteID: "2"},
		{Title: "Heroes", Artist: "David Bowie", Album: "Heroes", RemoteID: "1"},
	}, got)
}

func TestFetcher_StatusError(t *testing.T) {
	c, transport := newTestClient()
	transport.RegisterResponder("GET", `=~^https://dab\.test/api/search`, httpmock.NewStringResponder(401, ""))

	_, err := c.Fetcher(0)(context.Background(), search.Query{Title: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
}

func TestLibrarySink(t *testing.T) {
	c, transport := newTestClient()
	transport.RegisterResponder("GET", testBase+"/libraries",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"libraries": []map[string]any{{"id": "lib-1", "name": "Italian"}},
		}))
	transport.RegisterResponder("POST", testBase+"/libraries",
		httpmock.NewJsonResponderOrPanic(201, map[string]any{"library": map[string]any{"id": "lib-new", "name": "Road Trip"}}))
	transport.RegisterResponder("GET", testBase+"/libraries/lib-1/tracks",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"tracks": []map[string]any{{"id": 41, "title": "Caruso"}, {"id": nil, "title": "Broken"}},
		}))

	var added []string
	transport.RegisterResponder("POST", `=~^https://dab\.test/api/libraries/[^/]+/tracks$`,
		func(req *http.Request) (*http.Response, error) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			added = append(added, req.URL.Path+":"+body["trackId"])
			return httpmock.NewStringResponse(200, "{}"), nil
		})

	ctx := context.Background()
	sink := NewLibrarySink(c)
	existing, err := sink.Prepare(ctx, models.Playlist{ID: "p1", Name: "Italian"})
	require.NoError(t, err)
	assert.Equal(t, []string{"41"}, existing)

	existing, err = sink.Prepare(ctx, models.Playlist{ID: "p2", Name: "Road Trip"})
	require.NoError(t, err)
	assert.Empty(t, existing)
	assert.Equal(t, 4, transport.GetTotalCallCount(), "a new library has no tracks to read")

	require.NoError(t, sink.Emit(ctx, models.AddIntent{PlaylistID: "p1", RemoteID: "42"}))
	require.NoError(t, sink.Emit(ctx, models.AddIntent{PlaylistID: "p2", RemoteID: "43"}))
	assert.ErrorIs(t, sink.Emit(ctx, models.AddIntent{PlaylistID: "p3", RemoteID: "44"}), ErrUnknownLibrary)

	assert.Equal(t, []string{"/api/libraries/lib-1/tracks:42", "/api/libraries/lib-new/tracks:43"}, added)
}

func TestTrackID_Unmarshal(t *testing.T) {
	var v struct {
		A TrackID `json:"a"`
		B TrackID `json:"b"`
		C TrackID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 123456789012, "b": "abc", "c": null}`), &v))
	assert.Equal(t, TrackID("123456789012"), v.A)
	assert.Equal(t, TrackID("abc"), v.B)
	assert.Equal(t, TrackID(""), v.C)
}
