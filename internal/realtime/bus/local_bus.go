package bus

import (
	"context"
	"sync"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/realtime"
)

// localBus is an in-process fallback used when REDIS_ADDR is unset (local
// runs, tests). Same contract, no fan-out across processes.
type localBus struct {
	log *logger.Logger

	mu        sync.RWMutex
	callbacks []func(m realtime.SSEMessage)
	closed    bool
}

func NewLocalBus(log *logger.Logger) Bus {
	return &localBus{log: log.With("service", "LocalEventBus")}
}

func (b *localBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	b.mu.RLock()
	callbacks := make([]func(m realtime.SSEMessage), len(b.callbacks))
	copy(callbacks, b.callbacks)
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil
	}
	for _, cb := range callbacks {
		cb(msg)
	}
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return nil
	}
	b.mu.Lock()
	b.callbacks = append(b.callbacks, onMsg)
	b.mu.Unlock()
	return nil
}

func (b *localBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.callbacks = nil
	b.mu.Unlock()
	return nil
}
