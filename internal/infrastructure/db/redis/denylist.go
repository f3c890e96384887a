package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const minRevocationTTL = time.Second

// Denylist records revoked token ids until the token would have expired on
// its own. Key format: revoked:<jti>
type Denylist struct {
	client *redis.Client
	now    func() time.Time
}

// NewDenylist creates a Denylist wrapping the given Redis client.
func NewDenylist(client *redis.Client) *Denylist {
	return &Denylist{client: client, now: time.Now}
}

// Revoke marks id as revoked. The entry expires at until, so the set only
// ever holds tokens that are otherwise still valid.
func (d *Denylist) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}
	if err := d.client.Set(ctx, d.key(id), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether id has been revoked.
func (d *Denylist) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of tokens currently revoked.
func (d *Denylist) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := d.client.Scan(ctx, cursor, "revoked:*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("scan revoked: %w", err)
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func (d *Denylist) key(id string) string {
	return "revoked:" + id
}
