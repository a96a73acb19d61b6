package system

import (
	"context"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/behavior"
	"github.com/CredenceHamby/mydu-pve-mod/internal/core/snapshot"
	coresys "github.com/CredenceHamby/mydu-pve-mod/internal/core/system"
	"go.uber.org/zap"
)

// ContextEvictSystem drops cached contexts of constructs that have been
// missing from maxMisses consecutive active sets. Each published set counts
// once. Phase 3 (Cleanup).
type ContextEvictSystem struct {
	handles   *snapshot.Cell[[]behavior.Handle]
	cache     *behavior.Cache
	maxMisses int
	lastGen   uint64
	log       *zap.Logger
}

func NewContextEvictSystem(handles *snapshot.Cell[[]behavior.Handle], cache *behavior.Cache, maxMisses int, log *zap.Logger) *ContextEvictSystem {
	return &ContextEvictSystem{
		handles:   handles,
		cache:     cache,
		maxMisses: maxMisses,
		lastGen:   handles.Generation(),
		log:       log,
	}
}

func (s *ContextEvictSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *ContextEvictSystem) Update(_ context.Context, _ time.Duration) {
	gen := s.handles.Generation()
	if gen == s.lastGen {
		return
	}
	s.lastGen = gen

	evicted := s.cache.Sweep(s.handles.Load(), s.maxMisses)
	if len(evicted) > 0 {
		s.log.Info("evicted inactive construct contexts",
			zap.Uint64s("construct_ids", evicted),
			zap.Int("remaining", s.cache.Len()),
		)
	}
}
