package download

import "context"

// PermitPool is a fixed-size semaphore gating the active download phase.
// Tasks beyond the pool size wait in queued status without consuming any
// process resources.
type PermitPool struct {
	slots chan struct{}
}

// NewPermitPool creates a pool with the given number of permits
func NewPermitPool(size int) *PermitPool {
	if size <= 0 {
		size = 3
	}
	return &PermitPool{slots: make(chan struct{}, size)}
}

// Acquire blocks until a permit is free or the context is done
func (p *PermitPool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a permit without blocking
func (p *PermitPool) TryAcquire() bool {
	select {
	case p.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a permit to the pool
func (p *PermitPool) Release() {
	select {
	case <-p.slots:
	default:
	}
}

// InUse returns the number of permits currently held
func (p *PermitPool) InUse() int {
	return len(p.slots)
}

// Size returns the pool capacity
func (p *PermitPool) Size() int {
	return cap(p.slots)
}
