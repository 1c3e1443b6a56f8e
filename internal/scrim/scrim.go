// Package scrim is the boundary to the external match service: once an
// auction completes, its roster is handed over and the returned match ID is
// stored back on the auction as the linked scrim.
package scrim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Member is one drafted player on a team.
type Member struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Price       int       `json:"price"`
	WasUnsold   bool      `json:"was_unsold"`
}

// Team is one captain's final roster.
type Team struct {
	CaptainID   uuid.UUID `json:"captain_id"`
	CaptainName string    `json:"captain_name"`
	Members     []Member  `json:"members"`
}

// Roster is the completed result of an auction.
type Roster struct {
	AuctionID uuid.UUID `json:"auction_id"`
	Title     string    `json:"title"`
	Teams     []Team    `json:"teams"`
}

// Creator converts a completed roster into a scheduled match.
type Creator interface {
	CreateFromRoster(ctx context.Context, roster Roster) (uuid.UUID, error)
}

// HTTPCreator calls the match service over HTTP.
type HTTPCreator struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPCreator(baseURL string) *HTTPCreator {
	return &HTTPCreator{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPCreator) CreateFromRoster(ctx context.Context, roster Roster) (uuid.UUID, error) {
	body, err := json.Marshal(roster)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal roster: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scrims", bytes.NewReader(body))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build scrim request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("scrim service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return uuid.Nil, fmt.Errorf("scrim service returned status %d", resp.StatusCode)
	}

	var out struct {
		ScrimID uuid.UUID `json:"scrim_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode scrim response: %w", err)
	}
	return out.ScrimID, nil
}

// NoopCreator is used in development and tests; it mints a match ID without
// calling out.
type NoopCreator struct{}

func (NoopCreator) CreateFromRoster(ctx context.Context, roster Roster) (uuid.UUID, error) {
	return uuid.New(), nil
}
