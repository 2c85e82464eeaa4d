package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/janhq/picture-api/internal/utils/platformerrors"
)

const ledgerLockName = "picture-api:lock:ledger"

// RedisLocker serializes ranking mutations across every instance sharing the Redis server.
type RedisLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	log    zerolog.Logger
}

// NewRedisLocker builds the lock. expiry bounds how long a crashed holder blocks the others;
// a live holder keeps extending it while its mutation runs.
func NewRedisLocker(client *redis.Client, expiry time.Duration, log zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		log:    log.With().Str("component", "ledger-lock").Logger(),
	}
}

func (l *RedisLocker) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(ledgerLockName, redsync.WithExpiry(l.expiry))

	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeConflict,
				"another ranking change is in progress, retry shortly", err, "c4e8a1f6-3b27-4d95-9e0c-7a5f2d8b1e63")
		}
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"failed to acquire ranking lock", err, "8a2d6f0b-e5c1-4379-b4a8-1d9e7c3f5b20")
	}

	defer func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			l.log.Error().Err(err).Msg("failed to release ledger lock")
		}
	}()

	held, lost := context.WithCancelCause(ctx)
	defer lost(nil)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(held, mutex, stop, lost)
	}()

	err := fn(held)
	close(stop)
	<-done

	if cause := context.Cause(held); errors.Is(cause, errLockLost) {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeConflict,
			"ranking lock expired before the change finished, retry shortly", cause, "5e1b9c7d-2f84-4a36-8d0e-b3c6a9f1e472")
	}
	return err
}

var errLockLost = errors.New("ledger lock lost")

// keepAlive extends the mutex every third of its expiry until stop closes. A failed extension
// cancels ctx so the running transaction aborts instead of committing without the lock.
func (l *RedisLocker) keepAlive(ctx context.Context, mutex *redsync.Mutex, stop <-chan struct{}, lost context.CancelCauseFunc) {
	ticker := time.NewTicker(max(l.expiry/3, 10*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := mutex.ExtendContext(ctx)
			if err == nil && ok {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			l.log.Error().Err(err).Msg("ledger lock could not be extended")
			lost(errLockLost)
			return
		}
	}
}
