package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"oss-compliance-backend/config"
	"oss-compliance-backend/wizard/store"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const maxRetries = 3

// abandonedCheckoutAge is how long a "payment initiated" marker may sit
// without a completed payment before the bookkeeping is treated as an
// abandoned checkout and cleared.
const abandonedCheckoutAge = 6 * time.Hour

// CleanupExpiredFiles removes uploaded working copies older than the TTL.
func CleanupExpiredFiles(uploadPath string, ttl time.Duration) error {
	entries, err := os.ReadDir(uploadPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading upload directory: %v", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > ttl {
			filePath := filepath.Join(uploadPath, entry.Name())
			if err := os.Remove(filePath); err != nil {
				config.Logger.Warn("Failed to delete expired upload", zap.String("file", filePath), zap.Error(err))
				continue
			}
			config.Logger.Info("Deleted expired upload", zap.String("file", filePath))
		}
	}
	return nil
}

// CleanupAbandonedCheckouts scans wizard snapshots for stale pre-redirect
// bookkeeping (payment initiated long ago, never completed) and clears it,
// so an abandoned payment round-trip leaves nothing behind. Payment TTL
// already denies access; this is housekeeping on top of it.
func CleanupAbandonedCheckouts(ctx context.Context, redisClient *redis.Client) error {
	pattern := store.SnapshotKeyPrefix + "*"
	iter := redisClient.Scan(ctx, 0, pattern, 0).Iterator()

	for iter.Next(ctx) {
		key := iter.Val()

		data, err := redisClient.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		snap, err := store.DeserializeSnapshot(data)
		if err != nil {
			config.Logger.Warn("Skipping unreadable snapshot", zap.String("key", key), zap.Error(err))
			continue
		}

		if snap.PaymentInitiatedAtMillis == nil {
			continue
		}
		initiated := time.UnixMilli(*snap.PaymentInitiatedAtMillis)
		if time.Since(initiated) < abandonedCheckoutAge {
			continue
		}
		if snap.Payment != nil && snap.Payment.Completed {
			continue
		}

		snap.PreRedirectStep = nil
		snap.PaymentInitiatedAtMillis = nil
		payload, err := snap.Serialize()
		if err != nil {
			continue
		}
		if err := redisClient.Set(ctx, key, payload, redis.KeepTTL).Err(); err != nil {
			return fmt.Errorf("failed to clear abandoned checkout for %s: %v", key, err)
		}
		config.Logger.Info("Cleared abandoned checkout bookkeeping", zap.String("key", key))
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("error during SCAN iteration: %v", err)
	}
	return nil
}

// CleanupAllExpired handles the cleanup of upload files and stale checkout
// bookkeeping in one pass.
func CleanupAllExpired(uploadPath string, fileTTL time.Duration, redisClient *redis.Client) error {
	if err := CleanupExpiredFiles(uploadPath, fileTTL); err != nil {
		return err
	}
	return CleanupAbandonedCheckouts(context.Background(), redisClient)
}

// RunScheduledCleanup runs cleanup tasks daily at 1 AM with retries.
func RunScheduledCleanup(uploadPath string, redisClient *redis.Client) {
	c := cron.New()

	c.AddFunc("0 1 * * *", func() {
		config.Logger.Info("Running scheduled cleanup task")

		fileTTL := config.GetEnvDuration("UPLOAD_FILE_TTL", 48*time.Hour)

		for attempt := 1; attempt <= maxRetries; attempt++ {
			err := CleanupAllExpired(uploadPath, fileTTL, redisClient)
			if err == nil {
				config.Logger.Info("Scheduled cleanup finished")
				return
			}
			config.Logger.Error("Cleanup attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		config.Logger.Error("Scheduled cleanup gave up after retries")
	})

	c.Start()
}
