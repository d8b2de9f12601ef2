package repository

import (
	"context"
	"time"

	"civic-issue-portal/internal/domain"
)

// StateRepository 定义了进程外易失状态 (Redis) 的操作：
// 每个社区最近消息的缓存，以及限流计数。
// 缓存只是读路径的加速，消息日志 (MySQL) 才是权威数据源。
type StateRepository interface {
	// PushMessageToHistory 将一条已持久化的消息追加到社区的
	// 最近消息缓存，并裁剪到固定长度。
	PushMessageToHistory(ctx context.Context, communityID uint, message domain.CommunityMessage) error

	// GetRecentMessages 返回缓存中某社区最近的消息 (旧→新)。
	// 缓存为空时返回空切片，不视为错误。
	GetRecentMessages(ctx context.Context, communityID uint, limit int) ([]domain.CommunityMessage, error)

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	// 返回 true 表示超限。
	CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error)
}
