package poller

import (
	"context"
	"sync"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/cache"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/config"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Manager starts and stops topic pollers on subscriber-count transitions.
// A topic is polled only while at least one connection subscribes to it.
type Manager struct {
	mu      sync.Mutex
	running map[string]context.CancelFunc

	root        context.Context
	cfg         config.PollConfig
	scores      ScoreSource
	markets     MarketSource
	cache       *cache.TopicCache
	broadcaster Broadcaster
	sink        SnapshotSink

	clock   clockwork.Clock
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewManager creates a poller manager. Pollers started by this manager
// are children of the given root context; cancelling it stops them all.
func NewManager(
	root context.Context,
	cfg config.PollConfig,
	scores ScoreSource,
	markets MarketSource,
	topicCache *cache.TopicCache,
	broadcaster Broadcaster,
	sink SnapshotSink,
	clock clockwork.Clock,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		running:     make(map[string]context.CancelFunc),
		root:        root,
		cfg:         cfg,
		scores:      scores,
		markets:     markets,
		cache:       topicCache,
		broadcaster: broadcaster,
		sink:        sink,
		clock:       clock,
		metrics:     m,
		log:         log.With().Str("component", "poller").Logger(),
	}
}

// Start launches the poller for a topic if it is not already running
func (m *Manager) Start(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.running[topic]; ok {
		return
	}

	ctx, cancel := context.WithCancel(m.root)
	m.running[topic] = cancel

	p := &Poller{
		sport:        topic,
		interval:     m.cfg.IntervalFor(topic),
		fetchTimeout: m.cfg.FetchTimeout,
		scores:       m.scores,
		markets:      m.markets,
		cache:        m.cache,
		broadcaster:  m.broadcaster,
		sink:         m.sink,
		clock:        m.clock,
		metrics:      m.metrics,
		log:          m.log.With().Str("topic", topic).Logger(),
	}
	go p.run(ctx)
}

// Stop cancels the poller for a topic, releasing its timer. Safe to race
// with an in-flight fetch: a cycle completing after Stop observes its
// cancelled context and neither broadcasts nor re-arms.
func (m *Manager) Stop(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancel, ok := m.running[topic]
	if !ok {
		return
	}
	cancel()
	delete(m.running, topic)
}

// Active returns the topics currently being polled
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	topics := make([]string, 0, len(m.running))
	for topic := range m.running {
		topics = append(topics, topic)
	}
	return topics
}
