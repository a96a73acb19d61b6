package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/behavior"
	"github.com/CredenceHamby/mydu-pve-mod/internal/world"
)

// HandleRepo reads schedulable constructs from construct_handle.
type HandleRepo struct {
	db *DB
}

func NewHandleRepo(db *DB) *HandleRepo {
	return &HandleRepo{db: db}
}

// FindActiveHandles returns every active, non-deleted construct ordered by id.
func (r *HandleRepo) FindActiveHandles(ctx context.Context) ([]behavior.Handle, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx,
		`SELECT construct_id, sector_x, sector_y, sector_z, prefab
		 FROM construct_handle
		 WHERE active = TRUE AND deleted_at IS NULL
		 ORDER BY construct_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active handles: %w", err)
	}
	defer rows.Close()

	var result []behavior.Handle
	for rows.Next() {
		var (
			id     int64
			sector world.Vec3
			prefab string
		)
		if err := rows.Scan(&id, &sector.X, &sector.Y, &sector.Z, &prefab); err != nil {
			return nil, fmt.Errorf("scan handle: %w", err)
		}
		result = append(result, behavior.Handle{
			ConstructID: uint64(id),
			Sector:      sector,
			Prefab:      prefab,
		})
	}
	return result, rows.Err()
}

// TouchLastControlled implements behavior.LastControlledStore.
func (r *HandleRepo) TouchLastControlled(ctx context.Context, constructID uint64, at time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Pool.Exec(ctx,
		`UPDATE construct_handle SET last_controlled_at = $2 WHERE construct_id = $1`,
		int64(constructID), at,
	)
	if err != nil {
		return fmt.Errorf("touch last controlled %d: %w", constructID, err)
	}
	return nil
}
