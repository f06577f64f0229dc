// Package scores fetches the scoreboard feed for a sport and normalizes
// it into the snapshot schema.
package scores

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
)

// Client handles scoreboard provider requests
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// New creates a scoreboard client with a bounded request timeout
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: "Mozilla/5.0 (compatible; FortunaBot/1.0)",
	}
}

// scoreboardResponse covers the provider fields we normalize. Everything
// else in the payload is ignored.
type scoreboardResponse struct {
	Events []struct {
		ID     string `json:"id"`
		Date   string `json:"date"`
		Status struct {
			Type struct {
				State string `json:"state"` // "pre", "in", "post"
			} `json:"type"`
		} `json:"status"`
		Competitions []struct {
			Competitors []struct {
				HomeAway string `json:"homeAway"`
				Score    string `json:"score"`
				Team     struct {
					DisplayName string `json:"displayName"`
				} `json:"team"`
			} `json:"competitors"`
		} `json:"competitions"`
	} `json:"events"`
}

// FetchGames fetches the current scoreboard for a sport and returns
// normalized games. Market fields are left unresolved; the poller fills
// them in from the odds provider.
func (c *Client) FetchGames(ctx context.Context, sportKey string) ([]models.Game, error) {
	url := fmt.Sprintf("%s/%s/scoreboard", c.baseURL, providerPath(sportKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scores provider error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var scoreboard scoreboardResponse
	if err := json.NewDecoder(resp.Body).Decode(&scoreboard); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return normalize(scoreboard, sportKey)
}

// providerPath converts a sport key like "basketball_nba" into the
// provider's "basketball/nba" URL segment. Only the first underscore
// separates group from league.
func providerPath(sportKey string) string {
	return strings.Replace(sportKey, "_", "/", 1)
}

// normalize maps the provider payload onto the snapshot schema. Events
// missing both competitors are skipped rather than failing the cycle.
func normalize(scoreboard scoreboardResponse, sportKey string) ([]models.Game, error) {
	games := make([]models.Game, 0, len(scoreboard.Events))

	for _, event := range scoreboard.Events {
		if event.ID == "" || len(event.Competitions) == 0 {
			continue
		}

		game := models.Game{
			GameID:   event.ID,
			SportKey: sportKey,
			Status:   mapStatus(event.Status.Type.State),
		}

		if t, err := time.Parse(time.RFC3339, event.Date); err == nil {
			game.StartTime = t.UTC()
		}

		for _, competitor := range event.Competitions[0].Competitors {
			side := models.TeamSide{
				Name:  competitor.Team.DisplayName,
				Score: parseScore(competitor.Score),
			}
			switch competitor.HomeAway {
			case "home":
				game.Home = side
			case "away":
				game.Away = side
			}
		}

		if game.Home.Name == "" || game.Away.Name == "" {
			continue
		}

		games = append(games, game)
	}

	return games, nil
}

func mapStatus(state string) models.GameStatus {
	switch state {
	case "in":
		return models.StatusLive
	case "post":
		return models.StatusFinal
	default:
		return models.StatusScheduled
	}
}

func parseScore(raw string) int {
	score, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return score
}
