package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, SessionToken: "tok-1"}, srv.Client(), nil)
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL required")
}

func TestCreateInspection(t *testing.T) {
	t.Run("success decodes analysis and attaches credential", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/inspections", r.URL.Path)
			assert.Equal(t, "tok-1", r.Header.Get("Session-Token"))
			assert.NotEmpty(t, r.Header.Get("X-Client-Request-Id"))

			var req CreateInspectionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Floor 2", req.Location)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"inspection_id": "ins-1",
				"analysis":      map[string]any{"condition": "Good"},
			})
		})

		resp, err := client.CreateInspection(context.Background(), CreateInspectionRequest{
			ImageBase64: "aGVsbG8=",
			Location:    "Floor 2",
		})
		require.NoError(t, err)
		assert.Equal(t, "ins-1", resp.InspectionID)

		var analysis map[string]any
		require.NoError(t, json.Unmarshal(resp.Analysis, &analysis))
		assert.Equal(t, "Good", analysis["condition"])
	})

	t.Run("4xx yields rejection with verbatim detail", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"detail": "location is required"})
		})

		_, err := client.CreateInspection(context.Background(), CreateInspectionRequest{})
		require.Error(t, err)
		require.True(t, IsRejection(err))

		var re *RejectionError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, http.StatusUnprocessableEntity, re.StatusCode)
		assert.Equal(t, "location is required", re.Detail)
	})

	t.Run("504 with html body is ambiguous", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGatewayTimeout)
			w.Write([]byte("<html><body>504 Gateway Time-out</body></html>"))
		})

		_, err := client.CreateInspection(context.Background(), CreateInspectionRequest{Location: "Lobby"})
		require.Error(t, err)
		assert.True(t, IsAmbiguous(err))
		assert.False(t, IsRejection(err))
	})

	t.Run("502 is ambiguous", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.CreateInspection(context.Background(), CreateInspectionRequest{Location: "Lobby"})
		assert.True(t, IsAmbiguous(err))
	})

	t.Run("connection refused is unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close() // port now refuses connections

		client, err := NewClient(Config{BaseURL: srv.URL}, nil, nil)
		require.NoError(t, err)

		_, err = client.CreateInspection(context.Background(), CreateInspectionRequest{Location: "Lobby"})
		require.Error(t, err)
		assert.True(t, IsUnreachable(err))
		assert.False(t, IsAmbiguous(err))
	})
}

func TestListInspections(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/inspections", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "a", "location": "Lobby", "gemini_response": "{\"condition\": \"Good\"}", "created_at": "2024-05-28T10:00:00Z", "inspection_date": "2024-05-28T10:00:00Z"},
			{"id": "b", "location": "Dock", "analysis": {"condition": "Poor"}, "created_at": "2024-05-29T10:00:00Z", "inspection_date": "2024-05-29T10:00:00Z"}
		]`))
	})

	records, err := client.ListInspections(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Legacy string field and structured field both surface raw analysis.
	assert.Equal(t, `{"condition": "Good"}`, records[0].RawAnalysis())
	assert.Equal(t, map[string]any{"condition": "Poor"}, records[1].RawAnalysis())
}

func TestNearbyPlaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/places/nearby", r.URL.Path)
		assert.Equal(t, "47.61", r.URL.Query().Get("lat"))
		assert.Equal(t, "-122.33", r.URL.Query().Get("lng"))
		assert.Equal(t, "200", r.URL.Query().Get("radius"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"places": [{"name": "Pike Place Hardware", "address": "1501 Pike Pl"}]}`))
	})

	places, err := client.NearbyPlaces(context.Background(), 47.61, -122.33, 200)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Pike Place Hardware", places[0].Name)
}

func TestDeleteInspection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/inspections/ins-9", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.DeleteInspection(context.Background(), "ins-9"))
}

func TestHealth(t *testing.T) {
	healthy := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, healthy.Health(context.Background()))

	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.Error(t, down.Health(context.Background()))
}
