package delivery

import (
	"context"
	"time"

	"github.com/chrisconley/auditor-collector/internal/store"
	"github.com/chrisconley/auditor-collector/specs"
	"github.com/go-redis/redis/v8"
)

// seenTTL bounds how long a delivered record id is remembered for deduplication.
const seenTTL = 30 * 24 * time.Hour

// enqueueOnce pushes ARGV[1] onto KEYS[2] unless KEYS[1] marks it as already
// pushed. The seen key is written only after RPUSH succeeded, and a script
// runs without interleaving, so the key never exists without the push.
var enqueueOnce = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[1])
redis.call('SET', KEYS[1], '1', 'EX', ARGV[2])
return 1
`)

// RedisDeliverer pushes encoded records onto a Redis list that the accounting
// service drains.
type RedisDeliverer struct {
	client *redis.Client
	key    string
}

func NewRedisDeliverer(client *redis.Client, key string) *RedisDeliverer {
	return &RedisDeliverer{client: client, key: key}
}

func (d *RedisDeliverer) Name() string { return "redis" }

func (d *RedisDeliverer) Deliver(ctx context.Context, record specs.RecordSpec) Outcome {
	data, err := store.Encode(record)
	if err != nil {
		return Rejected("%v", err)
	}

	keys := []string{d.seenKey(record.RecordID), d.key}
	if err := enqueueOnce.Run(ctx, d.client, keys, data, int64(seenTTL.Seconds())).Err(); err != nil {
		return Unreachable("%v", err)
	}
	return Acknowledged()
}

func (d *RedisDeliverer) seenKey(id string) string {
	return d.key + ":seen:" + id
}

func (d *RedisDeliverer) Close() error {
	return d.client.Close()
}
