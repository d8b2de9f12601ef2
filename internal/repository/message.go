package repository

import (
	"context"

	"civic-issue-portal/internal/domain"
)

// MessageRepository 定义了社区消息日志的存储操作。
// 消息只增不改不删。
type MessageRepository interface {
	// Save 追加一条消息，写入后填充 ID 和服务端时间戳。
	Save(ctx context.Context, message *domain.CommunityMessage) error

	// FindByCommunity 返回某社区最近的 limit 条消息，按创建顺序
	// (旧→新) 排列。limit <= 0 时使用默认上限。
	FindByCommunity(ctx context.Context, communityID uint, limit int) ([]domain.CommunityMessage, error)
}
