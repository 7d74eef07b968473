package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

const summaryKeyPrefix = "policy--payment-summary--"

// SummaryCache stores the denormalized payment summary per policy. The
// projection is recomputed from the ledger after every write and is never
// read back for validation; readers that need correctness go to the ledger.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SummaryCache{client: client, ttl: ttl}
}

func summaryKey(policyID uuid.UUID) string {
	return summaryKeyPrefix + policyID.String()
}

func (c *SummaryCache) Store(ctx context.Context, summary models.PaymentSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize payment summary: %w", err)
	}
	if err := c.client.Set(ctx, summaryKey(summary.PolicyID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache payment summary: %w", err)
	}
	return nil
}

// Get returns the cached projection, or nil when the key is absent or
// unreadable. Callers fall back to recomputing from the ledger.
func (c *SummaryCache) Get(ctx context.Context, policyID uuid.UUID) (*models.PaymentSummary, error) {
	payload, err := c.client.Get(ctx, summaryKey(policyID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payment summary: %w", err)
	}

	var summary models.PaymentSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, nil
	}
	return &summary, nil
}

func (c *SummaryCache) Invalidate(ctx context.Context, policyID uuid.UUID) error {
	return c.client.Del(ctx, summaryKey(policyID)).Err()
}
