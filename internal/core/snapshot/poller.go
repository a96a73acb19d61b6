package snapshot

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FetchFunc produces the next value of a Poller.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Poller periodically refreshes a Cell from an authoritative source.
// A failed fetch is logged and leaves the previously published value in place.
type Poller[T any] struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	fetch    FetchFunc[T]
	cell     *Cell[T]
	log      *zap.Logger
}

func NewPoller[T any](name string, interval time.Duration, cell *Cell[T], fetch FetchFunc[T], log *zap.Logger) *Poller[T] {
	return &Poller[T]{
		name:     name,
		interval: interval,
		timeout:  interval,
		fetch:    fetch,
		cell:     cell,
		log:      log.With(zap.String("poller", name)),
	}
}

func (p *Poller[T]) Cell() *Cell[T] { return p.cell }

// Refresh performs one fetch and publishes the result on success.
func (p *Poller[T]) Refresh(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	v, err := p.fetch(ctx)
	if err != nil {
		p.log.Warn("refresh failed, keeping previous snapshot", zap.Error(err))
		return err
	}
	p.cell.Store(v)
	return nil
}

// Run refreshes once immediately and then on every interval until ctx is done.
// A non-positive interval disables periodic refresh after the first fetch.
func (p *Poller[T]) Run(ctx context.Context) {
	_ = p.Refresh(ctx)

	if p.interval <= 0 {
		p.log.Error("non-positive refresh interval, periodic refresh disabled", zap.Duration("interval", p.interval))
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Refresh(ctx)
		}
	}
}
