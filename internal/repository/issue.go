package repository

import (
	"context"

	"civic-issue-portal/internal/domain"
)

// IssueRepository 定义了问题工单的存储操作。
type IssueRepository interface {
	// Save 保存工单 (创建或更新)。
	Save(ctx context.Context, issue *domain.Issue) error

	// FindByID 根据 ID 查找工单。不存在时返回 ErrIssueNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Issue, error)

	// FindAll 返回所有工单，按创建时间倒序。
	FindAll(ctx context.Context) ([]domain.Issue, error)

	// FindByCreator 返回某用户上报的工单，按创建时间倒序。
	FindByCreator(ctx context.Context, userID uint) ([]domain.Issue, error)

	// FindUnclassified 返回尚未成功分类的工单 ID，供周期任务重新入队。
	FindUnclassified(ctx context.Context, limit int) ([]uint, error)
}
