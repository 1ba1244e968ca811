package sweep

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claimer grants one sweep instance exclusive processing of a record.
type Claimer interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string)
}

const claimKeyPrefix = "notif:claim:"

// releaseScript deletes the claim only while it is still held by owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClaimer claims records with SET NX PX. Claims expire after ttl, so a
// crashed instance never blocks a record for longer than that.
type RedisClaimer struct {
	client *redis.Client
	owner  string
	ttl    time.Duration
}

func NewRedisClaimer(client *redis.Client, owner string, ttl time.Duration) *RedisClaimer {
	return &RedisClaimer{client: client, owner: owner, ttl: ttl}
}

func claimKey(id string) string {
	return claimKeyPrefix + id
}

func (c *RedisClaimer) Claim(ctx context.Context, id string) (bool, error) {
	return c.client.SetNX(ctx, claimKey(id), c.owner, c.ttl).Result()
}

// Release is best effort; an unreleased claim simply expires.
func (c *RedisClaimer) Release(ctx context.Context, id string) {
	_ = releaseScript.Run(ctx, c.client, []string{claimKey(id)}, c.owner).Err()
}
