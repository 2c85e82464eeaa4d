package picture

import (
	"context"
)

// Locker serializes ranking mutations. Implementations hold the lock until fn returns, so no
// two ranking transactions count the same slot at once.
type Locker interface {
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// localLocker serializes mutations within one process.
type localLocker struct {
	sem chan struct{}
}

func newLocalLocker() *localLocker {
	return &localLocker{sem: make(chan struct{}, 1)}
}

func (l *localLocker) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()
	return fn(ctx)
}

// Option customizes a Service.
type Option func(*Service)

// WithLocker replaces the in-process lock, e.g. with one shared by every instance.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}
