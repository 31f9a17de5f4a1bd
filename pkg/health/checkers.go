package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by *pgxpool.Pool and other connectivity-checkable
// clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabasePing returns a readiness check that pings the database.
func DatabasePing(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Wrap(err, "database ping")
		}
		return nil
	}
}

// GoroutineCount returns a liveness check that fails when the goroutine count
// exceeds threshold, catching runaway leaks.
func GoroutineCount(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}
