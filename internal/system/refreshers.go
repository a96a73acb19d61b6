package system

import (
	"context"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/behavior"
	"github.com/CredenceHamby/mydu-pve-mod/internal/core/snapshot"
	"go.uber.org/zap"
)

// HandleSource queries the constructs currently eligible for scheduling.
type HandleSource interface {
	FindActiveHandles(ctx context.Context) ([]behavior.Handle, error)
}

// NewHandleRefresher publishes the active set every interval. The set starts
// empty until the first successful query.
func NewHandleRefresher(src HandleSource, interval time.Duration, log *zap.Logger) *snapshot.Poller[[]behavior.Handle] {
	cell := snapshot.NewCell[[]behavior.Handle](nil)
	return snapshot.NewPoller("active_handles", interval, cell, src.FindActiveHandles, log)
}

// NewFeatureGate publishes the named subsystem flag every interval. The gate
// is closed until the first successful read.
func NewFeatureGate(features behavior.FeatureSource, name string, interval time.Duration, log *zap.Logger) *snapshot.Poller[bool] {
	cell := snapshot.NewCell(false)
	return snapshot.NewPoller("feature_gate", interval, cell, func(ctx context.Context) (bool, error) {
		return features.GetBool(ctx, name, false)
	}, log.With(zap.String("feature", name)))
}
