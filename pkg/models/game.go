package models

import "time"

// GameStatus represents the current state of a game
type GameStatus string

const (
	StatusScheduled GameStatus = "scheduled"
	StatusLive      GameStatus = "live"
	StatusFinal     GameStatus = "final"
)

// TeamSide holds one competing side of a game
type TeamSide struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Markets holds the betting market fields for a game. These may be absent
// on the first fetch and get resolved by a secondary odds request.
type Markets struct {
	Spread        float64 `json:"spread"`         // Point spread relative to home team
	Total         float64 `json:"total"`          // Over/under line
	HomeMoneyline int     `json:"home_moneyline"` // American odds
	AwayMoneyline int     `json:"away_moneyline"` // American odds
}

// Game is the universal model for any sport. A Game is immutable once
// built for a fetch cycle; a later fetch produces a fresh Snapshot.
type Game struct {
	GameID    string     `json:"game_id"`
	SportKey  string     `json:"sport_key"` // "basketball_nba"
	Status    GameStatus `json:"status"`
	Home      TeamSide   `json:"home"`
	Away      TeamSide   `json:"away"`
	StartTime time.Time  `json:"start_time"`
	Markets   *Markets   `json:"markets,omitempty"`
}

// Snapshot is the full normalized state of one topic at one point in time.
// Game ids are unique within a snapshot.
type Snapshot struct {
	SportKey  string    `json:"sport_key"`
	Games     []Game    `json:"games"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Find returns the game with the given id, if present.
func (s Snapshot) Find(gameID string) (Game, bool) {
	for _, g := range s.Games {
		if g.GameID == gameID {
			return g, true
		}
	}
	return Game{}, false
}
