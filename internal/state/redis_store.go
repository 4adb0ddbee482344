package state

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	logx "github.com/wpchat/agentcore/pkg/logger"
)

// RedisStore keeps one JSON record per conversation with a TTL that is
// refreshed on every save.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

var _ Store = (*RedisStore)(nil)

func (r *RedisStore) key(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Conversation, error) {
	key := r.key(id)

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation from redis")
		return nil, errors.Wrap(err, "redis get")
	}

	c, err := Load(raw)
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to unmarshal conversation")
		return nil, errors.Wrap(err, "unmarshal conversation")
	}
	return c, nil
}

func (r *RedisStore) Save(ctx context.Context, c *Conversation) error {
	raw, err := c.Dump()
	if err != nil {
		logx.Error().Err(err).Str("conversationID", c.ConversationID).Msg("failed to marshal conversation")
		return errors.Wrap(err, "marshal conversation")
	}

	key := r.key(c.ConversationID)
	if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save conversation to redis")
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	key := r.key(id)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation from redis")
		return errors.Wrap(err, "redis del")
	}
	return nil
}
