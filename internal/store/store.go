// Package store pushes changed snapshots to the downstream collaborators:
// a Redis mirror/stream and a relational history store. Writes happen off
// the broadcast path and never block it; failures are logged only.
package store

import (
	"context"

	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
	"github.com/rs/zerolog"
)

// Store fans a snapshot out to whichever collaborators are configured.
// Either side may be nil when disabled.
type Store struct {
	mirror *Mirror
	writer *GameWriter
	log    zerolog.Logger
}

// New creates a snapshot store; nil mirror or writer disables that side
func New(mirror *Mirror, writer *GameWriter, log zerolog.Logger) *Store {
	return &Store{
		mirror: mirror,
		writer: writer,
		log:    log.With().Str("component", "store").Logger(),
	}
}

// Enabled reports whether any collaborator is configured
func (s *Store) Enabled() bool {
	return s.mirror != nil || s.writer != nil
}

// Write pushes one changed snapshot downstream. Best-effort per
// collaborator: a Redis failure does not skip the relational write.
func (s *Store) Write(ctx context.Context, snap models.Snapshot) {
	if s.mirror != nil {
		if err := s.mirror.WriteLatest(ctx, snap); err != nil {
			s.log.Error().Err(err).Str("topic", snap.SportKey).Msg("redis mirror write failed")
		}
		if err := s.mirror.PublishStream(ctx, snap); err != nil {
			s.log.Error().Err(err).Str("topic", snap.SportKey).Msg("redis stream publish failed")
		}
	}

	if s.writer != nil {
		if err := s.writer.WriteSnapshot(ctx, snap); err != nil {
			s.log.Error().Err(err).Str("topic", snap.SportKey).Msg("snapshot history write failed")
		}
	}
}
