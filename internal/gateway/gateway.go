// Package gateway glues a connection's protocol requests to the fan-out
// and reconciliation halves of the core.
package gateway

import (
	"fmt"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/cache"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/client"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/hub"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/poller"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/reconciler"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/registry"
	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
	"github.com/rs/zerolog"
)

// Gateway implements client.Gateway on top of the core's components
type Gateway struct {
	sports     map[string]bool
	subs       *registry.Registry
	pollers    *poller.Manager
	cache      *cache.TopicCache
	hub        *hub.Hub
	reconciler *reconciler.Reconciler
	log        zerolog.Logger
}

// New creates the gateway
func New(
	sports map[string]bool,
	subs *registry.Registry,
	pollers *poller.Manager,
	topicCache *cache.TopicCache,
	h *hub.Hub,
	rec *reconciler.Reconciler,
	log zerolog.Logger,
) *Gateway {
	return &Gateway{
		sports:     sports,
		subs:       subs,
		pollers:    pollers,
		cache:      topicCache,
		hub:        h,
		reconciler: rec,
		log:        log.With().Str("component", "gateway").Logger(),
	}
}

// Subscribe joins a connection to a sport's topic. The first subscriber
// of a topic starts its poller.
func (g *Gateway) Subscribe(c *client.Client, sport string) error {
	if !g.sports[sport] {
		return fmt.Errorf("unknown sport: %s", sport)
	}

	if first := g.subs.Subscribe(c, sport); first {
		g.pollers.Start(sport)
	}

	g.log.Info().Str("client_id", c.ID()).Str("topic", sport).Msg("subscribed")
	return nil
}

// Unsubscribe removes a connection from a sport's topic. The last
// subscriber leaving stops the topic's poller.
func (g *Gateway) Unsubscribe(c *client.Client, sport string) error {
	if !g.sports[sport] {
		return fmt.Errorf("unknown sport: %s", sport)
	}

	if last := g.subs.Unsubscribe(c, sport); last {
		g.pollers.Stop(sport)
	}

	g.log.Info().Str("client_id", c.ID()).Str("topic", sport).Msg("unsubscribed")
	return nil
}

// Disconnect runs the terminal cleanup for a connection: subscriptions
// are dropped (stopping any topic that emptied), the device goes stale,
// and the hub forgets the connection.
func (g *Gateway) Disconnect(c *client.Client) {
	for _, topic := range g.subs.Drop(c) {
		g.pollers.Stop(topic)
	}

	if userID, deviceID, ok := c.SyncIdentity(); ok {
		g.reconciler.Disconnect(userID, deviceID)
	}

	g.hub.Unregister(c)
}

// LatestOdds returns the cached snapshot for a sport
func (g *Gateway) LatestOdds(sport string) (models.Snapshot, bool) {
	return g.cache.Get(sport)
}

// SyncSlip feeds a bet_slip_sync submission into the reconciler
func (g *Gateway) SyncSlip(c *client.Client, req models.SlipSyncRequest) (models.SlipSyncAck, error) {
	return g.reconciler.Sync(c, req)
}
