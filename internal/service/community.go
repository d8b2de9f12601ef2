package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"civic-issue-portal/internal/domain"
	"civic-issue-portal/internal/repository"
)

// Identity 是认证层交付的已验证身份 (user id + 展示名)。
// Service 层信任这个输入，不做任何凭证检查。
type Identity struct {
	ID   uint
	Name string
}

// RoomNotifier 把成员变动和新消息推送给当前连接在某社区房间的客户端。
// 通知只是失效提示 ("有变化，请重新拉取")，不是权威状态；
// 推送失败不回滚已完成的持久化变更。
type RoomNotifier interface {
	// MembershipChanged 通知房间内客户端成员/申请列表有变化
	MembershipChanged(communityID uint)
	// MemberApproved 通知房间内客户端某用户的申请已被批准
	MemberApproved(communityID, userID uint)
	// UserKicked 通知房间内客户端某用户已被移出社区
	UserKicked(communityID, userID uint)
	// MessageCreated 把一条已持久化的消息广播给房间内客户端
	MessageCreated(communityID uint, message domain.CommunityMessage)
}

// CommunityService 负责社区的全部状态迁移，
// 是 members / joinRequests 两个集合的唯一写入者。
type CommunityService struct {
	communityRepo repository.CommunityRepository
	userRepo      repository.UserRepository
	messageRepo   repository.MessageRepository
	stateRepo     repository.StateRepository
	notifier      RoomNotifier
}

// NewCommunityService 创建 CommunityService 实例。
func NewCommunityService(
	communityRepo repository.CommunityRepository,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	stateRepo repository.StateRepository,
	notifier RoomNotifier,
) *CommunityService {
	if communityRepo == nil {
		panic("CommunityRepository cannot be nil for CommunityService")
	}
	if messageRepo == nil {
		panic("MessageRepository cannot be nil for CommunityService")
	}
	if notifier == nil {
		panic("RoomNotifier cannot be nil for CommunityService")
	}
	return &CommunityService{
		communityRepo: communityRepo,
		userRepo:      userRepo,
		messageRepo:   messageRepo,
		stateRepo:     stateRepo,
		notifier:      notifier,
	}
}

// Create 创建一个新社区，创建者自动成为第一个成员。
func (s *CommunityService) Create(ctx context.Context, creatorID uint, name, description, category, avatar string) (*domain.Community, error) {
	logCtx := logrus.WithFields(logrus.Fields{"creator_id": creatorID, "name": name})

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: community name is required", ErrValidation)
	}
	if category == "" {
		category = domain.DefaultCommunityCategory
	} else if !domain.IsValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}
	if avatar == "" {
		avatar = domain.DefaultCommunityAvatar
	}

	community := &domain.Community{
		Name:        name,
		Description: strings.TrimSpace(description),
		Category:    category,
		Avatar:      avatar,
		CreatorID:   creatorID,
	}

	if err := s.communityRepo.Create(ctx, community); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.Warn("Community creation failed: name already taken")
			return nil, ErrCommunityNameTaken
		}
		logCtx.WithError(err).Error("Failed to create community")
		return nil, ErrInternalServer
	}

	logCtx.WithField("community_id", community.ID).Info("Community created")
	return community, nil
}

// RequestJoin 记录一条入会申请。
// 创建者或已有成员重复申请是幂等的无操作，返回 alreadyMember=true；
// 已有待审批申请时返回 ErrDuplicateJoinRequest。
func (s *CommunityService) RequestJoin(ctx context.Context, communityID, userID uint) (alreadyMember bool, err error) {
	logCtx := logrus.WithFields(logrus.Fields{"community_id": communityID, "user_id": userID})

	community, err := s.findCommunity(ctx, communityID, logCtx)
	if err != nil {
		return false, err
	}

	if community.CreatorID == userID {
		return true, nil
	}
	isMember, err := s.communityRepo.IsMember(ctx, communityID, userID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check membership")
		return false, ErrInternalServer
	}
	if isMember {
		return true, nil
	}

	hasPending, err := s.communityRepo.HasJoinRequest(ctx, communityID, userID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check pending join request")
		return false, ErrInternalServer
	}
	if hasPending {
		return false, ErrDuplicateJoinRequest
	}

	if err := s.communityRepo.AddJoinRequest(ctx, communityID, userID); err != nil {
		// 并发下两次检查可能同时通过，唯一索引兜底
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return false, ErrDuplicateJoinRequest
		}
		logCtx.WithError(err).Error("Failed to record join request")
		return false, ErrInternalServer
	}

	s.notifier.MembershipChanged(communityID)
	logCtx.Info("Join request recorded")
	return false, nil
}

// ApproveJoin 由创建者批准一条入会申请：原子地从 joinRequests
// 移动到 members。
func (s *CommunityService) ApproveJoin(ctx context.Context, communityID, targetUserID, actingUserID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"community_id": communityID,
		"target_user":  targetUserID,
		"acting_user":  actingUserID,
	})

	community, err := s.findCommunity(ctx, communityID, logCtx)
	if err != nil {
		return err
	}
	if community.CreatorID != actingUserID {
		logCtx.Warn("Approve join rejected: caller is not the creator")
		return ErrNotAuthorized
	}

	if err := s.communityRepo.ApproveJoinRequest(ctx, communityID, targetUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 申请不存在，或已被并发的另一次批准消费
			return ErrNoPendingRequest
		}
		logCtx.WithError(err).Error("Failed to approve join request")
		return ErrInternalServer
	}

	s.notifier.MembershipChanged(communityID)
	s.notifier.MemberApproved(communityID, targetUserID)
	logCtx.Info("Join request approved")
	return nil
}

// RejectJoin 由创建者拒绝一条入会申请，只删除申请，不影响成员。
func (s *CommunityService) RejectJoin(ctx context.Context, communityID, targetUserID, actingUserID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"community_id": communityID,
		"target_user":  targetUserID,
		"acting_user":  actingUserID,
	})

	community, err := s.findCommunity(ctx, communityID, logCtx)
	if err != nil {
		return err
	}
	if community.CreatorID != actingUserID {
		logCtx.Warn("Reject join rejected: caller is not the creator")
		return ErrNotAuthorized
	}

	if err := s.communityRepo.RemoveJoinRequest(ctx, communityID, targetUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoPendingRequest
		}
		logCtx.WithError(err).Error("Failed to remove join request")
		return ErrInternalServer
	}

	s.notifier.MembershipChanged(communityID)
	logCtx.Info("Join request rejected")
	return nil
}

// Leave 将用户移出成员集合。创建者离开自己的社区同样被允许。
// 成功后向房间写入并广播一条系统消息。
func (s *CommunityService) Leave(ctx context.Context, communityID uint, user Identity) error {
	logCtx := logrus.WithFields(logrus.Fields{"community_id": communityID, "user_id": user.ID})

	if _, err := s.findCommunity(ctx, communityID, logCtx); err != nil {
		return err
	}

	err := s.communityRepo.RemoveMember(ctx, communityID, user.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logCtx.WithError(err).Error("Failed to remove member on leave")
		return ErrInternalServer
	}
	// 非成员调用 leave 视为无操作成功

	s.postSystemMessage(ctx, communityID, fmt.Sprintf("%s has left the community", user.Name), logCtx)
	s.notifier.MembershipChanged(communityID)
	logCtx.Info("User left community")
	return nil
}

// Kick 由创建者将某成员移出社区。创建者不能踢自己。
func (s *CommunityService) Kick(ctx context.Context, communityID, targetUserID, actingUserID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"community_id": communityID,
		"target_user":  targetUserID,
		"acting_user":  actingUserID,
	})

	community, err := s.findCommunity(ctx, communityID, logCtx)
	if err != nil {
		return err
	}
	if community.CreatorID != actingUserID {
		logCtx.Warn("Kick rejected: caller is not the creator")
		return ErrNotAuthorized
	}
	if targetUserID == actingUserID {
		return ErrSelfKick
	}

	// 取被踢用户的展示名用于系统消息
	targetName := "A member"
	if s.userRepo != nil {
		if target, err := s.userRepo.FindByID(ctx, targetUserID); err == nil {
			targetName = target.Name
		}
	}

	if err := s.communityRepo.RemoveMember(ctx, communityID, targetUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMemberNotFound
		}
		logCtx.WithError(err).Error("Failed to remove member on kick")
		return ErrInternalServer
	}

	s.postSystemMessage(ctx, communityID, fmt.Sprintf("%s was kicked from the community", targetName), logCtx)
	s.notifier.UserKicked(communityID, targetUserID)
	s.notifier.MembershipChanged(communityID)
	logCtx.Info("Member kicked")
	return nil
}

// List 返回所有社区。
func (s *CommunityService) List(ctx context.Context) ([]domain.Community, error) {
	communities, err := s.communityRepo.FindAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list communities")
		return nil, ErrInternalServer
	}
	return communities, nil
}

// GetDetail 返回社区及展开后的成员/创建者/待审批列表。
func (s *CommunityService) GetDetail(ctx context.Context, communityID uint) (*domain.CommunityDetail, error) {
	detail, err := s.communityRepo.FindDetailByID(ctx, communityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCommunityNotFound
		}
		logrus.WithError(err).WithField("community_id", communityID).Error("Failed to load community detail")
		return nil, ErrInternalServer
	}
	return detail, nil
}

// GetMessages 返回某社区最近的消息，旧→新。
// 小批量读取优先走 Redis 缓存，缓存未命中或不足时回落到消息日志。
func (s *CommunityService) GetMessages(ctx context.Context, communityID uint, limit int) ([]domain.CommunityMessage, error) {
	logCtx := logrus.WithField("community_id", communityID)

	if s.stateRepo != nil && limit > 0 && limit <= 100 {
		cached, err := s.stateRepo.GetRecentMessages(ctx, communityID, limit)
		if err != nil {
			logCtx.WithError(err).Warn("Message cache read failed, falling back to message log")
		} else if len(cached) >= limit {
			return cached, nil
		}
	}

	messages, err := s.messageRepo.FindByCommunity(ctx, communityID, limit)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load messages")
		return nil, ErrInternalServer
	}
	return messages, nil
}

// findCommunity 查找社区，把仓库错误映射为业务错误。
func (s *CommunityService) findCommunity(ctx context.Context, communityID uint, logCtx *logrus.Entry) (*domain.Community, error) {
	community, err := s.communityRepo.FindByID(ctx, communityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCommunityNotFound
		}
		logCtx.WithError(err).Error("Failed to load community")
		return nil, ErrInternalServer
	}
	return community, nil
}

// postSystemMessage 持久化并广播一条系统消息。
// 持久化失败只记日志：成员变更本身已经生效，不因通知失败回滚。
func (s *CommunityService) postSystemMessage(ctx context.Context, communityID uint, text string, logCtx *logrus.Entry) {
	message := domain.CommunityMessage{
		CommunityID: communityID,
		SenderName:  "System",
		Kind:        domain.MessageKindSystem,
		Text:        text,
	}
	if err := s.messageRepo.Save(ctx, &message); err != nil {
		logCtx.WithError(err).Warn("Failed to persist system message, skipping broadcast")
		return
	}
	if s.stateRepo != nil {
		if err := s.stateRepo.PushMessageToHistory(ctx, communityID, message); err != nil {
			logCtx.WithError(err).Warn("Failed to cache system message")
		}
	}
	s.notifier.MessageCreated(communityID, message)
}
