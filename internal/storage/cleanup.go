package storage

import (
	"context"
	"time"

	"github.com/abuzaid911/uaepass-front/internal/log"
)

// DefaultCleanupInterval is how often the cleanup manager sweeps expired
// tokens when no interval is configured.
const DefaultCleanupInterval = 10 * time.Minute

// ExpiryDeleter is implemented by stores that can sweep expired tokens
type ExpiryDeleter interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// CleanupManager handles periodic cleanup of expired stored tokens
type CleanupManager struct {
	store    ExpiryDeleter
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCleanupManager creates a cleanup manager. interval <= 0 selects
// DefaultCleanupInterval.
func NewCleanupManager(store ExpiryDeleter, interval time.Duration) *CleanupManager {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupManager{
		store:    store,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the cleanup loop in a goroutine
func (cm *CleanupManager) Start(ctx context.Context) {
	log.LogInfoWithFields("cleanup", "Starting token cleanup manager", map[string]any{
		"interval": cm.interval.String(),
	})

	go cm.run(ctx)
}

// Stop gracefully stops the cleanup loop, running a final sweep
func (cm *CleanupManager) Stop() {
	close(cm.stopChan)
	<-cm.doneChan
}

func (cm *CleanupManager) run(ctx context.Context) {
	defer close(cm.doneChan)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run cleanup immediately on start
	cm.cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.cleanup(ctx)
		case <-cm.stopChan:
			cm.cleanup(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (cm *CleanupManager) cleanup(ctx context.Context) {
	count, err := cm.store.DeleteExpired(ctx)
	if err != nil {
		log.LogErrorWithFields("cleanup", "Failed to delete expired tokens", map[string]any{
			"error": err.Error(),
		})
		return
	}

	if count > 0 {
		log.LogInfoWithFields("cleanup", "Deleted expired tokens", map[string]any{
			"count": count,
		})
	}
}
