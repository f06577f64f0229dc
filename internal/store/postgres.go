package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
)

// GameWriter persists normalized game records for historical reporting
type GameWriter struct {
	db *sql.DB
}

// NewGameWriter creates a Postgres game writer
func NewGameWriter(db *sql.DB) *GameWriter {
	return &GameWriter{db: db}
}

// WriteSnapshot upserts every game of a snapshot in one transaction
func (w *GameWriter) WriteSnapshot(ctx context.Context, snap models.Snapshot) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if commit doesn't happen

	query := `
		INSERT INTO games (
			game_id, sport_key, status, home_team, home_score,
			away_team, away_score, start_time,
			spread, total, home_moneyline, away_moneyline, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (sport_key, game_id) DO UPDATE SET
			status = EXCLUDED.status,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			spread = EXCLUDED.spread,
			total = EXCLUDED.total,
			home_moneyline = EXCLUDED.home_moneyline,
			away_moneyline = EXCLUDED.away_moneyline,
			fetched_at = EXCLUDED.fetched_at
	`

	for _, game := range snap.Games {
		var spread, total sql.NullFloat64
		var homeML, awayML sql.NullInt64
		if game.Markets != nil {
			spread = sql.NullFloat64{Float64: game.Markets.Spread, Valid: true}
			total = sql.NullFloat64{Float64: game.Markets.Total, Valid: true}
			homeML = sql.NullInt64{Int64: int64(game.Markets.HomeMoneyline), Valid: true}
			awayML = sql.NullInt64{Int64: int64(game.Markets.AwayMoneyline), Valid: true}
		}

		_, err = tx.ExecContext(
			ctx,
			query,
			game.GameID,
			game.SportKey,
			string(game.Status),
			game.Home.Name,
			game.Home.Score,
			game.Away.Name,
			game.Away.Score,
			game.StartTime,
			spread,
			total,
			homeML,
			awayML,
			snap.FetchedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert game %s: %w", game.GameID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
