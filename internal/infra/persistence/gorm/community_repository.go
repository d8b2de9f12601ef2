package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"civic-issue-portal/internal/domain"
	"civic-issue-portal/internal/repository"
)

// GormCommunityRepository 是 CommunityRepository 接口的 GORM 实现。
// 成员集合与待审批集合分别落在 community_members / join_requests 两张
// 关系表上，(community_id, user_id) 唯一索引承担存储级去重。
type GormCommunityRepository struct {
	db *gorm.DB
}

// NewGormCommunityRepository 创建 GormCommunityRepository 实例
func NewGormCommunityRepository(db *gorm.DB) *GormCommunityRepository {
	if db == nil {
		panic("database connection cannot be nil for GormCommunityRepository")
	}
	return &GormCommunityRepository{db: db}
}

// Create 在事务中创建社区并写入创建者成员关系
func (r *GormCommunityRepository) Create(ctx context.Context, community *domain.Community) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(community).Error; err != nil {
			return err
		}
		member := domain.CommunityMember{CommunityID: community.ID, UserID: community.CreatorID}
		return tx.Create(&member).Error
	})
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create community (name: %s): %w", community.Name, err)
	}
	return nil
}

// FindByID 实现根据 ID 查找社区
func (r *GormCommunityRepository) FindByID(ctx context.Context, id uint) (*domain.Community, error) {
	var community domain.Community
	err := r.db.WithContext(ctx).First(&community, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCommunityNotFound
		}
		return nil, fmt.Errorf("gorm: find community by id %d: %w", id, err)
	}
	return &community, nil
}

// FindDetailByID 查找社区并展开创建者/成员/待审批申请
func (r *GormCommunityRepository) FindDetailByID(ctx context.Context, id uint) (*domain.CommunityDetail, error) {
	community, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &domain.CommunityDetail{Community: *community}

	// 创建者摘要
	var creator domain.User
	if err := r.db.WithContext(ctx).First(&creator, community.CreatorID).Error; err == nil {
		detail.Creator = domain.UserSummary{ID: creator.ID, Name: creator.Name, Email: creator.Email}
	}

	// 成员列表 (创建时序，创建者排在最前)
	members, err := r.userSummaries(ctx, "community_members", id)
	if err != nil {
		return nil, fmt.Errorf("gorm: resolve members for community %d: %w", id, err)
	}
	detail.Members = members

	// 待审批申请
	requests, err := r.userSummaries(ctx, "join_requests", id)
	if err != nil {
		return nil, fmt.Errorf("gorm: resolve join requests for community %d: %w", id, err)
	}
	detail.JoinRequests = requests

	return detail, nil
}

// userSummaries 通过 join 把关系表中的 user_id 展开为用户摘要。
func (r *GormCommunityRepository) userSummaries(ctx context.Context, table string, communityID uint) ([]domain.UserSummary, error) {
	summaries := make([]domain.UserSummary, 0)
	err := r.db.WithContext(ctx).
		Table(table).
		Select("users.id, users.name, users.email").
		Joins("JOIN users ON users.id = "+table+".user_id").
		Where(table+".community_id = ?", communityID).
		Order(table + ".id ASC").
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// FindAll 返回所有社区，按创建时间倒序
func (r *GormCommunityRepository) FindAll(ctx context.Context) ([]domain.Community, error) {
	var communities []domain.Community
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&communities).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find all communities: %w", err)
	}
	return communities, nil
}

// IsMember 实现成员关系检查
func (r *GormCommunityRepository) IsMember(ctx context.Context, communityID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.CommunityMember{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count members for community %d: %w", communityID, err)
	}
	return count > 0, nil
}

// HasJoinRequest 实现待审批申请检查
func (r *GormCommunityRepository) HasJoinRequest(ctx context.Context, communityID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.JoinRequest{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count join requests for community %d: %w", communityID, err)
	}
	return count > 0, nil
}

// AddJoinRequest 实现记录入会申请
func (r *GormCommunityRepository) AddJoinRequest(ctx context.Context, communityID, userID uint) error {
	request := domain.JoinRequest{CommunityID: communityID, UserID: userID}
	err := r.db.WithContext(ctx).Create(&request).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: add join request (community %d, user %d): %w", communityID, userID, err)
	}
	return nil
}

// RemoveJoinRequest 实现删除入会申请
func (r *GormCommunityRepository) RemoveJoinRequest(ctx context.Context, communityID, userID uint) error {
	result := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Delete(&domain.JoinRequest{})
	if result.Error != nil {
		return fmt.Errorf("gorm: remove join request (community %d, user %d): %w", communityID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ApproveJoinRequest 在事务中把申请移动为成员关系。
// DELETE 的受影响行数是并发裁决点：两个并发批准中，
// 后提交的事务删不到行，整个事务回滚并返回 ErrNotFound。
func (r *GormCommunityRepository) ApproveJoinRequest(ctx context.Context, communityID, userID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("community_id = ? AND user_id = ?", communityID, userID).
			Delete(&domain.JoinRequest{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		member := domain.CommunityMember{CommunityID: communityID, UserID: userID}
		return tx.Create(&member).Error
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: approve join request (community %d, user %d): %w", communityID, userID, err)
	}
	return nil
}

// AddMember 实现插入成员关系
func (r *GormCommunityRepository) AddMember(ctx context.Context, communityID, userID uint) error {
	member := domain.CommunityMember{CommunityID: communityID, UserID: userID}
	err := r.db.WithContext(ctx).Create(&member).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: add member (community %d, user %d): %w", communityID, userID, err)
	}
	return nil
}

// RemoveMember 实现删除成员关系
func (r *GormCommunityRepository) RemoveMember(ctx context.Context, communityID, userID uint) error {
	result := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Delete(&domain.CommunityMember{})
	if result.Error != nil {
		return fmt.Errorf("gorm: remove member (community %d, user %d): %w", communityID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
