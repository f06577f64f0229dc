// Package oddsapi fetches betting markets for a sport: head-to-head
// moneylines, point spreads, and totals.
package oddsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
)

// Market keys on the odds provider
const (
	marketH2H     = "h2h"
	marketSpreads = "spreads"
	marketTotals  = "totals"
)

// GameOdds is one event's resolved markets, keyed by team names because
// the odds provider assigns its own event ids.
type GameOdds struct {
	HomeTeam string
	AwayTeam string
	Markets  models.Markets
}

// Client handles odds provider requests
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates an odds client with a bounded request timeout
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type oddsResponse []struct {
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	Bookmakers []struct {
		Markets []struct {
			Key      string `json:"key"`
			Outcomes []struct {
				Name  string   `json:"name"`
				Price int      `json:"price"`
				Point *float64 `json:"point,omitempty"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// FetchMarkets fetches h2h, spread, and total markets for every current
// event of a sport.
func (c *Client) FetchMarkets(ctx context.Context, sportKey string) ([]GameOdds, error) {
	endpoint := fmt.Sprintf("%s/sports/%s/odds", c.baseURL, sportKey)

	query := url.Values{}
	query.Set("apiKey", c.apiKey)
	query.Set("regions", "us")
	query.Set("markets", fmt.Sprintf("%s,%s,%s", marketH2H, marketSpreads, marketTotals))
	query.Set("oddsFormat", "american")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("odds provider error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var events oddsResponse
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	odds := make([]GameOdds, 0, len(events))
	for _, event := range events {
		if len(event.Bookmakers) == 0 {
			continue
		}

		markets := models.Markets{}

		// First listed book only; consensus pricing lives in the
		// normalizer service, not here.
		for _, market := range event.Bookmakers[0].Markets {
			switch market.Key {
			case marketH2H:
				for _, outcome := range market.Outcomes {
					if outcome.Name == event.HomeTeam {
						markets.HomeMoneyline = outcome.Price
					} else if outcome.Name == event.AwayTeam {
						markets.AwayMoneyline = outcome.Price
					}
				}
			case marketSpreads:
				for _, outcome := range market.Outcomes {
					if outcome.Name == event.HomeTeam && outcome.Point != nil {
						markets.Spread = *outcome.Point
					}
				}
			case marketTotals:
				for _, outcome := range market.Outcomes {
					if outcome.Point != nil {
						markets.Total = *outcome.Point
						break
					}
				}
			}
		}

		odds = append(odds, GameOdds{
			HomeTeam: event.HomeTeam,
			AwayTeam: event.AwayTeam,
			Markets:  markets,
		})
	}

	return odds, nil
}
