package recon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps generated reports in Redis for a short TTL. Reconciliation is
// an aggregate scan, so staleness up to the TTL is acceptable and no
// invalidation is attempted.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs Cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func reportKey(productID int64) string {
	return fmt.Sprintf("recon:report:%d", productID)
}

// Get returns a cached report and whether one was present.
func (c *Cache) Get(ctx context.Context, productID int64) (Report, bool, error) {
	if c == nil || c.client == nil {
		return Report{}, false, nil
	}
	raw, err := c.client.Get(ctx, reportKey(productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Report{}, false, nil
		}
		return Report{}, false, err
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return Report{}, false, err
	}
	return report, true, nil
}

// Set stores a report for the configured TTL.
func (c *Cache) Set(ctx context.Context, report Report) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, reportKey(report.ProductID), raw, c.ttl).Err()
}
