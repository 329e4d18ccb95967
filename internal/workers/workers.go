package workers

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

type ExpiredShareDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// StartShareCleanup deletes expired shares every interval until ctx is
// done. The returned channel is closed once the worker has stopped.
func StartShareCleanup(ctx context.Context, repo ExpiredShareDeleter, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()

		cleanupExpiredShares(ctx, repo)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cleanupExpiredShares(ctx, repo)
			}
		}
	}()

	return done
}

func cleanupExpiredShares(ctx context.Context, repo ExpiredShareDeleter) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	n, err := repo.DeleteExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Errorf("Error deleting expired shares: %v", err)
		}
		return
	}
	if n > 0 {
		log.Infof("Deleted %d expired shares", n)
	}
}
