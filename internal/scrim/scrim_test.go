package scrim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHTTPCreatorPostsRoster(t *testing.T) {
	scrimID := uuid.New()
	roster := Roster{
		AuctionID: uuid.New(),
		Title:     "Friday Night Draft",
		Teams: []Team{{
			CaptainID:   uuid.New(),
			CaptainName: "alpha",
			Members:     []Member{{UserID: uuid.New(), DisplayName: "charlie", Price: 150}},
		}},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/scrims", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got Roster
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, roster.AuctionID, got.AuctionID)
		require.Len(t, got.Teams, 1)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"scrim_id":%q}`, scrimID)
	}))
	defer server.Close()

	creator := NewHTTPCreator(server.URL)
	got, err := creator.CreateFromRoster(context.Background(), roster)
	require.NoError(t, err)
	require.Equal(t, scrimID, got)
}

func TestHTTPCreatorRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	creator := NewHTTPCreator(server.URL)
	_, err := creator.CreateFromRoster(context.Background(), Roster{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
