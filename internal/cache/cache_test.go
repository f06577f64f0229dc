package cache_test

import (
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/cache"
	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
	"github.com/google/go-cmp/cmp"
)

func snapshot(fetchedAt time.Time, homeScore int) models.Snapshot {
	return models.Snapshot{
		SportKey: "basketball_nba",
		Games: []models.Game{
			{
				GameID:   "401585601",
				SportKey: "basketball_nba",
				Status:   models.StatusLive,
				Home:     models.TeamSide{Name: "Lakers", Score: homeScore},
				Away:     models.TeamSide{Name: "Celtics", Score: 98},
			},
		},
		FetchedAt: fetchedAt,
	}
}

func TestTopicCache_FirstPutIsAChange(t *testing.T) {
	c := cache.New()

	if !c.Put("basketball_nba", snapshot(time.Now(), 100)) {
		t.Error("first Put should report changed = true")
	}
}

func TestTopicCache_EqualSnapshotIsNotAChange(t *testing.T) {
	c := cache.New()
	t0 := time.Date(2026, 1, 10, 19, 0, 0, 0, time.UTC)
	t1 := t0.Add(30 * time.Second)

	c.Put("basketball_nba", snapshot(t0, 100))

	// Same content, later fetch time: content is unchanged.
	if c.Put("basketball_nba", snapshot(t1, 100)) {
		t.Error("Put of semantically equal snapshot should report changed = false")
	}

	// The last-attempt time still advances.
	attempt, ok := c.LastAttempt("basketball_nba")
	if !ok || !attempt.Equal(t1) {
		t.Errorf("LastAttempt() = %v, %v, want %v, true", attempt, ok, t1)
	}

	// The cached snapshot keeps the original fetch time.
	got, _ := c.Get("basketball_nba")
	if !got.FetchedAt.Equal(t0) {
		t.Errorf("cached FetchedAt = %v, want original %v", got.FetchedAt, t0)
	}
}

func TestTopicCache_ChangedFieldIsAChange(t *testing.T) {
	c := cache.New()
	t0 := time.Now()

	c.Put("basketball_nba", snapshot(t0, 100))

	if !c.Put("basketball_nba", snapshot(t0.Add(30*time.Second), 102)) {
		t.Error("Put with a changed score should report changed = true")
	}

	got, ok := c.Get("basketball_nba")
	if !ok {
		t.Fatal("Get() should find the topic")
	}
	if got.Games[0].Home.Score != 102 {
		t.Errorf("cached home score = %d, want 102", got.Games[0].Home.Score)
	}
}

func TestTopicCache_MarketResolutionIsAChange(t *testing.T) {
	c := cache.New()
	t0 := time.Now()

	bare := snapshot(t0, 100)
	c.Put("basketball_nba", bare)

	withMarkets := snapshot(t0.Add(5*time.Second), 100)
	withMarkets.Games[0].Markets = &models.Markets{Spread: -3.5, Total: 224.5, HomeMoneyline: -160, AwayMoneyline: 140}

	if !c.Put("basketball_nba", withMarkets) {
		t.Error("resolving market fields should report changed = true")
	}
}

func TestTopicCache_TopicsAreIndependent(t *testing.T) {
	c := cache.New()

	c.Put("basketball_nba", snapshot(time.Now(), 100))

	if _, ok := c.Get("americanfootball_nfl"); ok {
		t.Error("Get() of a never-written topic should report absent")
	}

	want := []string{"basketball_nba"}
	if diff := cmp.Diff(want, c.Topics()); diff != "" {
		t.Errorf("Topics() mismatch (-want +got):\n%s", diff)
	}
}
