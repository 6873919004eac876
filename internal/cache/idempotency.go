package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const confirmClaimPrefix = "payment:confirm:"

// IdempotencyGuard deduplicates gateway confirmation callbacks before
// they reach the database. A claim is taken with SetNX keyed by the
// gateway transaction ID; a duplicate callback arriving while the claim
// lives short-circuits without touching the payment. The claim is
// released on processing failure so a later gateway retry can go through.
// The database-level conditional status update stays authoritative; this
// guard only sheds duplicate work.
type IdempotencyGuard struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewIdempotencyGuard creates a new IdempotencyGuard
func NewIdempotencyGuard(client redis.Cmdable, ttl time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{
		client: client,
		ttl:    ttl,
	}
}

// Claim attempts to take the processing claim for a transaction ID.
// Returns false when another caller already holds it.
func (g *IdempotencyGuard) Claim(ctx context.Context, transactionID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, confirmClaimPrefix+transactionID, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim confirmation for %s: %w", transactionID, err)
	}
	return ok, nil
}

// Release drops the claim so the confirmation can be retried
func (g *IdempotencyGuard) Release(ctx context.Context, transactionID string) error {
	if err := g.client.Del(ctx, confirmClaimPrefix+transactionID).Err(); err != nil {
		return fmt.Errorf("failed to release confirmation claim for %s: %w", transactionID, err)
	}
	return nil
}
