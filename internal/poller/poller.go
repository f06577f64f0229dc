// Package poller runs one scheduled fetch loop per subscribed topic:
// fetch scores, resolve markets, diff against the topic cache, and hand
// changed snapshots to the broadcast dispatcher.
package poller

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/cache"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/providers/oddsapi"
	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ScoreSource fetches the normalized scoreboard for a sport
type ScoreSource interface {
	FetchGames(ctx context.Context, sportKey string) ([]models.Game, error)
}

// MarketSource resolves betting markets for a sport's current events
type MarketSource interface {
	FetchMarkets(ctx context.Context, sportKey string) ([]oddsapi.GameOdds, error)
}

// Broadcaster receives changed snapshots and provider error notices
type Broadcaster interface {
	PublishOdds(topic string, snap models.Snapshot)
	PublishError(topic string, message string)
}

// SnapshotSink receives changed snapshots for downstream persistence.
// Writes must never block broadcasting; the poller invokes the sink on
// its own goroutine with a bounded context.
type SnapshotSink interface {
	Write(ctx context.Context, snap models.Snapshot)
}

// Poller drives the fetch cycles for a single topic
type Poller struct {
	sport        string
	interval     time.Duration
	fetchTimeout time.Duration

	scores      ScoreSource
	markets     MarketSource
	cache       *cache.TopicCache
	broadcaster Broadcaster
	sink        SnapshotSink // may be nil

	// Guards against overlapping cycles: a tick arriving while a cycle
	// runs is skipped, never queued.
	inFlight atomic.Bool

	clock   clockwork.Clock
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// run executes the polling loop until the context is cancelled. The first
// cycle fires immediately so a new subscriber does not wait a full
// interval for data.
func (p *Poller) run(ctx context.Context) {
	p.log.Info().Dur("interval", p.interval).Msg("poller started")

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("poller stopped")
			return
		case <-ticker.Chan():
			p.cycle(ctx)
		}
	}
}

// cycle performs one fetch cycle. Any failure logs and skips; the next
// tick is the retry.
func (p *Poller) cycle(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.metrics.PollCycles.WithLabelValues(p.sport, "skipped").Inc()
		p.log.Warn().Msg("previous cycle still in flight, skipping tick")
		return
	}
	defer p.inFlight.Store(false)

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	games, err := p.scores.FetchGames(fetchCtx, p.sport)
	if err != nil {
		p.metrics.PollCycles.WithLabelValues(p.sport, "error").Inc()
		p.log.Error().Err(err).Msg("score fetch failed, skipping cycle")
		p.broadcaster.PublishError(p.sport, "live data temporarily unavailable")
		return
	}

	p.resolveMarkets(fetchCtx, games)

	snap := models.Snapshot{
		SportKey:  p.sport,
		Games:     games,
		FetchedAt: p.clock.Now(),
	}

	changed := p.cache.Put(p.sport, snap)
	if !changed {
		p.metrics.PollCycles.WithLabelValues(p.sport, "unchanged").Inc()
		return
	}

	// The topic may have been stopped while the fetch was in flight; a
	// late completion must not broadcast.
	if ctx.Err() != nil {
		return
	}

	p.metrics.PollCycles.WithLabelValues(p.sport, "changed").Inc()
	p.log.Debug().Int("games", len(games)).Msg("snapshot changed, broadcasting")
	p.broadcaster.PublishOdds(p.sport, snap)

	if p.sink != nil {
		go func() {
			writeCtx, cancel := context.WithTimeout(context.Background(), p.fetchTimeout)
			defer cancel()
			p.sink.Write(writeCtx, snap)
		}()
	}
}

// resolveMarkets fills in market fields the scoreboard feed lacks via the
// odds provider. A failed odds fetch degrades the cycle to scores only.
func (p *Poller) resolveMarkets(ctx context.Context, games []models.Game) {
	if len(games) == 0 {
		return
	}

	missing := false
	for i := range games {
		if games[i].Markets == nil {
			missing = true
			break
		}
	}
	if !missing {
		return
	}

	odds, err := p.markets.FetchMarkets(ctx, p.sport)
	if err != nil {
		p.log.Warn().Err(err).Msg("odds fetch failed, continuing without markets")
		return
	}

	for i := range games {
		if games[i].Markets != nil {
			continue
		}
		for _, o := range odds {
			if strings.EqualFold(o.HomeTeam, games[i].Home.Name) &&
				strings.EqualFold(o.AwayTeam, games[i].Away.Name) {
				m := o.Markets
				games[i].Markets = &m
				break
			}
		}
	}
}
