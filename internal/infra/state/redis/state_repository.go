// Package redisstate 提供 StateRepository 接口的 Redis 实现。
package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"civic-issue-portal/internal/domain"
)

// 每个社区缓存的最近消息条数
const messageHistorySize = 100

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "cip:" // 默认前缀 (civic-issue-portal)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisStateRepository) communityMessagesKey(communityID uint) string {
	return fmt.Sprintf("%scommunity:%d:messages", r.keyPrefix, communityID)
}

// PushMessageToHistory 将一条已持久化的消息追加到最近消息缓存。
func (r *RedisStateRepository) PushMessageToHistory(ctx context.Context, communityID uint, message domain.CommunityMessage) error {
	key := r.communityMessagesKey(communityID)
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal message for history (id %d): %w", message.ID, err)
	}
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, key, string(messageBytes))
	pipe.LTrim(ctx, key, -messageHistorySize, -1) // 只保留最近 N 条
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis: failed to push message to history for community %d on key %s: %w", communityID, key, err)
	}
	return nil
}

// GetRecentMessages 返回缓存中某社区最近的消息 (旧→新)。
func (r *RedisStateRepository) GetRecentMessages(ctx context.Context, communityID uint, limit int) ([]domain.CommunityMessage, error) {
	if limit <= 0 || limit > messageHistorySize {
		limit = messageHistorySize
	}
	key := r.communityMessagesKey(communityID)
	messageStrs, err := r.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get recent messages for community %d from %s: %w", communityID, key, err)
	}
	messages := make([]domain.CommunityMessage, 0, len(messageStrs))
	for _, messageStr := range messageStrs {
		var message domain.CommunityMessage
		if err := json.Unmarshal([]byte(messageStr), &message); err == nil {
			messages = append(messages, message)
		} else {
			logrus.Warnf("redis: failed to unmarshal cached message for community %d: %v", communityID, err)
		}
	}
	return messages, nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	// 使用 Pipeline 减少网络往返
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, duration)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}
