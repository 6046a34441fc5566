// Package weather wraps the OpenWeatherMap current-weather API. The core only
// needs the "is it raining" answer; the rest of the snapshot is informational.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type Snapshot struct {
	City        string    `json:"city"`
	Raining     bool      `json:"raining"`
	TempC       float64   `json:"temp_c"`
	Description string    `json:"description"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Lookup fetches current weather for a city. Without an API key it returns
// stable mock data so a dev deployment stays usable.
func (c *Client) Lookup(ctx context.Context, city string) (Snapshot, error) {
	if c.apiKey == "" {
		return c.mockSnapshot(city), nil
	}

	u := fmt.Sprintf("%s/weather?q=%s&units=metric&appid=%s", c.baseURL, url.QueryEscape(city), c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Snapshot{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	var result struct {
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Rain map[string]float64 `json:"rain"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		City:      city,
		TempC:     result.Main.Temp,
		Raining:   len(result.Rain) > 0,
		FetchedAt: time.Now().UTC(),
	}
	if len(result.Weather) > 0 {
		snap.Description = result.Weather[0].Description
		switch result.Weather[0].Main {
		case "Rain", "Drizzle", "Thunderstorm":
			snap.Raining = true
		}
	}
	return snap, nil
}

func (c *Client) mockSnapshot(city string) Snapshot {
	return Snapshot{
		City:        city,
		Raining:     false,
		TempC:       22,
		Description: "clear sky",
		FetchedAt:   time.Now().UTC(),
	}
}
