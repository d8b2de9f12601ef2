package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"civic-issue-portal/internal/domain"
	"civic-issue-portal/internal/repository"
)

// GormIssueRepository 是 IssueRepository 接口的 GORM 实现
type GormIssueRepository struct {
	db *gorm.DB
}

// NewGormIssueRepository 创建 GormIssueRepository 实例
func NewGormIssueRepository(db *gorm.DB) *GormIssueRepository {
	if db == nil {
		panic("database connection cannot be nil for GormIssueRepository")
	}
	return &GormIssueRepository{db: db}
}

// Save 实现保存工单（创建或更新）
func (r *GormIssueRepository) Save(ctx context.Context, issue *domain.Issue) error {
	err := r.db.WithContext(ctx).Save(issue).Error
	if err != nil {
		return fmt.Errorf("gorm: save issue (id: %d): %w", issue.ID, err)
	}
	return nil
}

// FindByID 实现根据 ID 查找工单
func (r *GormIssueRepository) FindByID(ctx context.Context, id uint) (*domain.Issue, error) {
	var issue domain.Issue
	err := r.db.WithContext(ctx).First(&issue, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrIssueNotFound
		}
		return nil, fmt.Errorf("gorm: find issue by id %d: %w", id, err)
	}
	return &issue, nil
}

// FindAll 返回所有工单，按创建时间倒序
func (r *GormIssueRepository) FindAll(ctx context.Context) ([]domain.Issue, error) {
	var issues []domain.Issue
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&issues).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find all issues: %w", err)
	}
	return issues, nil
}

// FindByCreator 返回某用户上报的工单
func (r *GormIssueRepository) FindByCreator(ctx context.Context, userID uint) ([]domain.Issue, error) {
	var issues []domain.Issue
	err := r.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at DESC").
		Find(&issues).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find issues by creator %d: %w", userID, err)
	}
	return issues, nil
}

// FindUnclassified 返回尚未成功分类的工单 ID
func (r *GormIssueRepository) FindUnclassified(ctx context.Context, limit int) ([]uint, error) {
	if limit <= 0 {
		limit = 50
	}
	var ids []uint
	err := r.db.WithContext(ctx).Model(&domain.Issue{}).
		Where("classified = ?", false).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find unclassified issues: %w", err)
	}
	return ids, nil
}
