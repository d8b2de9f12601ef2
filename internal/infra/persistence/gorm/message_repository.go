package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"civic-issue-portal/internal/domain"
)

// 单次历史查询的默认上限，避免无界响应。
const defaultMessageLimit = 200

// GormMessageRepository 是 MessageRepository 接口的 GORM 实现
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GormMessageRepository 实例
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// Save 实现追加一条消息。自增主键即插入顺序。
func (r *GormMessageRepository) Save(ctx context.Context, message *domain.CommunityMessage) error {
	err := r.db.WithContext(ctx).Create(message).Error
	if err != nil {
		return fmt.Errorf("gorm: save message (community %d, sender %d): %w", message.CommunityID, message.SenderID, err)
	}
	return nil
}

// FindByCommunity 取最近 limit 条消息，返回时按旧→新排列。
func (r *GormMessageRepository) FindByCommunity(ctx context.Context, communityID uint, limit int) ([]domain.CommunityMessage, error) {
	if limit <= 0 || limit > defaultMessageLimit {
		limit = defaultMessageLimit
	}
	var messages []domain.CommunityMessage
	// 先按 id 倒序取最近的 limit 条，再在内存中反转为正序
	err := r.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find messages for community %d: %w", communityID, err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
