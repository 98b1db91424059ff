package tx

import (
	"context"
	"sync"
)

// InMemoryCoordinator serializes units of work with a coarse lock. It backs
// service unit tests and local development, where the postgres coordinator's
// row locks are unavailable. Services order all validations before any
// mutation, so a failed unit of work leaves no partial state even without
// rollback support.
type InMemoryCoordinator struct {
	mu sync.Mutex
}

func NewInMemoryCoordinator() *InMemoryCoordinator {
	return &InMemoryCoordinator{}
}

func (c *InMemoryCoordinator) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(ctx)
}
