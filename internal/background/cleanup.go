package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/HarlanReyes/bastion/internal/repositories"
)

// CleanupManager periodically prunes expired refresh tokens and MFA tickets.
type CleanupManager struct {
	refreshTokens repositories.RefreshTokenStore
	mfaTickets    repositories.MFATicketStore
	logger        *slog.Logger
	interval      time.Duration
	stopCh        chan struct{}
}

func NewCleanupManager(
	refreshTokens repositories.RefreshTokenStore,
	mfaTickets repositories.MFATicketStore,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		refreshTokens: refreshTokens,
		mfaTickets:    mfaTickets,
		logger:        logger,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tokensDeleted, err := cm.refreshTokens.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired refresh tokens", slog.Any("error", err))
	}

	ticketsDeleted, err := cm.mfaTickets.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired mfa tickets", slog.Any("error", err))
	}

	if tokensDeleted > 0 || ticketsDeleted > 0 {
		cm.logger.Info("expired token cleanup completed",
			slog.Int64("refresh_tokens_deleted", tokensDeleted),
			slog.Int64("mfa_tickets_deleted", ticketsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
