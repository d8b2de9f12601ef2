package repository

import (
	"context"

	"civic-issue-portal/internal/domain"
)

// CommunityRepository 定义了社区及其成员/入会申请集合的存储操作。
// 成员与申请的业务规则 (谁能批准、谁能踢人) 在 Service 层，
// 这里只保证存储级不变式：唯一的社区名、唯一的 (社区, 用户) 关系、
// 以及对同一社区并发变更时的串行化 (两个并发 approve 中后到者
// 必须观察到前者的效果并以 ErrNotFound 失败)。
type CommunityRepository interface {
	// Create 在单个事务中创建社区并写入创建者成员关系，
	// 保证创建者从创建起就是成员。社区名冲突时返回 ErrDuplicateEntry。
	Create(ctx context.Context, community *domain.Community) error

	// FindByID 根据 ID 查找社区。不存在时返回 ErrCommunityNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Community, error)

	// FindDetailByID 查找社区并展开创建者/成员/待审批申请为用户摘要。
	FindDetailByID(ctx context.Context, id uint) (*domain.CommunityDetail, error)

	// FindAll 返回所有社区，按创建时间倒序。
	FindAll(ctx context.Context) ([]domain.Community, error)

	// IsMember 检查用户是否是社区成员。
	IsMember(ctx context.Context, communityID, userID uint) (bool, error)

	// HasJoinRequest 检查用户是否有待审批的入会申请。
	HasJoinRequest(ctx context.Context, communityID, userID uint) (bool, error)

	// AddJoinRequest 记录一条入会申请。
	// 已存在相同申请时返回 ErrDuplicateEntry。
	AddJoinRequest(ctx context.Context, communityID, userID uint) error

	// RemoveJoinRequest 删除入会申请 (拒绝路径)。
	// 没有对应申请时返回 ErrNotFound。
	RemoveJoinRequest(ctx context.Context, communityID, userID uint) error

	// ApproveJoinRequest 在单个事务中将申请移动为成员关系：
	// 删除申请并插入成员。没有待审批申请时返回 ErrNotFound，
	// 且不产生任何变更。
	ApproveJoinRequest(ctx context.Context, communityID, userID uint) error

	// AddMember 插入一条成员关系 (创建社区时写入创建者)。
	AddMember(ctx context.Context, communityID, userID uint) error

	// RemoveMember 删除成员关系 (leave/kick 路径)。
	// 没有对应关系时返回 ErrNotFound。
	RemoveMember(ctx context.Context, communityID, userID uint) error
}
