package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/core/event"
)

// EventRow is one persisted NPC notification.
type EventRow struct {
	EventType   string
	PlayerID    uint64
	ConstructID uint64
	SectorX     float64
	SectorY     float64
	SectorZ     float64
	PlayerCount int
	CreatedAt   time.Time
}

const eventTypePlayerDefeatedNpc = "player_defeated_npc"

// EventRowFrom converts a bus event into a row. It reports false for event
// types that are not persisted.
func EventRowFrom(ev any) (EventRow, bool) {
	switch e := ev.(type) {
	case event.PlayerDefeatedNpc:
		return EventRow{
			EventType:   eventTypePlayerDefeatedNpc,
			PlayerID:    e.PlayerID,
			ConstructID: e.ConstructID,
			SectorX:     e.SectorX,
			SectorY:     e.SectorY,
			SectorZ:     e.SectorZ,
			PlayerCount: e.PlayerCount,
			CreatedAt:   e.At,
		}, true
	case event.ConstructEventFired:
		return EventRow{
			EventType:   e.Name,
			ConstructID: e.ConstructID,
			PlayerCount: e.PlayerCount,
			CreatedAt:   e.At,
		}, true
	}
	return EventRow{}, false
}

type EventRepo struct {
	db *DB
}

func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// WriteEvents atomically writes a batch of events in a single transaction.
func (r *EventRepo) WriteEvents(ctx context.Context, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("events begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO npc_event (event_type, player_id, construct_id, sector_x, sector_y, sector_z, player_count, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.EventType, int64(e.PlayerID), int64(e.ConstructID),
			e.SectorX, e.SectorY, e.SectorZ, e.PlayerCount, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("events insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}
