package persist

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// FeatureRepo reads dynamic feature flags from feature_flag.
type FeatureRepo struct {
	db *DB
}

func NewFeatureRepo(db *DB) *FeatureRepo {
	return &FeatureRepo{db: db}
}

// GetBool returns the flag value, or def when the flag is not set.
func (r *FeatureRepo) GetBool(ctx context.Context, name string, def bool) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var value string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT value FROM feature_flag WHERE name = $1`, name,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("read feature %s: %w", name, err)
	}
	return parseFlag(name, value, def)
}

// Set upserts a flag value.
func (r *FeatureRepo) Set(ctx context.Context, name, value string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO feature_flag (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
		name, value,
	)
	return err
}

func parseFlag(name, value string, def bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	on, err := strconv.ParseBool(value)
	if err != nil {
		return def, fmt.Errorf("feature %s: invalid bool %q", name, value)
	}
	return on, nil
}
