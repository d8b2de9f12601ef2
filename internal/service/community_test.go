package service_test

import (
	"context"
	"errors"
	"testing"

	"civic-issue-portal/internal/domain"
	"civic-issue-portal/internal/repository"
	"civic-issue-portal/internal/repository/mocks"
	"civic-issue-portal/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// RoomNotifier 的 mock 实现, 用于断言推送与状态变更的配合
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) MembershipChanged(communityID uint) {
	m.Called(communityID)
}
func (m *mockNotifier) MemberApproved(communityID, userID uint) {
	m.Called(communityID, userID)
}
func (m *mockNotifier) UserKicked(communityID, userID uint) {
	m.Called(communityID, userID)
}
func (m *mockNotifier) MessageCreated(communityID uint, message domain.CommunityMessage) {
	m.Called(communityID, message)
}

type communityFixture struct {
	communityRepo *mocks.CommunityRepository
	userRepo      *mocks.UserRepository
	messageRepo   *mocks.MessageRepository
	stateRepo     *mocks.StateRepository
	notifier      *mockNotifier
	svc           *service.CommunityService
}

func newCommunityFixture() *communityFixture {
	f := &communityFixture{
		communityRepo: new(mocks.CommunityRepository),
		userRepo:      new(mocks.UserRepository),
		messageRepo:   new(mocks.MessageRepository),
		stateRepo:     new(mocks.StateRepository),
		notifier:      new(mockNotifier),
	}
	f.svc = service.NewCommunityService(f.communityRepo, f.userRepo, f.messageRepo, f.stateRepo, f.notifier)
	return f
}

func (f *communityFixture) assertAll(t *testing.T) {
	f.communityRepo.AssertExpectations(t)
	f.userRepo.AssertExpectations(t)
	f.messageRepo.AssertExpectations(t)
	f.stateRepo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

// --- Create ---

func TestCommunityService_Create_Success(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()

	f.communityRepo.On("Create", ctx, mock.MatchedBy(func(c *domain.Community) bool {
		assert.Equal(t, "Ward 12 Watch", c.Name)
		assert.Equal(t, uint(7), c.CreatorID)
		assert.Equal(t, domain.DefaultCommunityCategory, c.Category, "空分类应落回默认值")
		assert.Equal(t, domain.DefaultCommunityAvatar, c.Avatar)
		return true
	})).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Community).ID = 3
		}).
		Return(nil).
		Once()

	community, err := f.svc.Create(ctx, 7, "  Ward 12 Watch  ", "Neighbourhood watch", "", "")

	assert.NoError(t, err)
	require.NotNil(t, community)
	assert.Equal(t, uint(3), community.ID)
	f.assertAll(t)
}

func TestCommunityService_Create_NameTaken(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()

	f.communityRepo.On("Create", ctx, mock.AnythingOfType("*domain.Community")).
		Return(repository.ErrDuplicateEntry).
		Once()

	_, err := f.svc.Create(ctx, 7, "Ward 12 Watch", "", "", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrCommunityNameTaken))
	f.assertAll(t)
}

func TestCommunityService_Create_InvalidCategory(t *testing.T) {
	f := newCommunityFixture()

	_, err := f.svc.Create(context.Background(), 7, "Ward 12 Watch", "", "Astrology", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrValidation))
	f.communityRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// --- RequestJoin ---

func TestCommunityService_RequestJoin_Success(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()
	f.communityRepo.On("IsMember", ctx, uint(3), uint(9)).Return(false, nil).Once()
	f.communityRepo.On("HasJoinRequest", ctx, uint(3), uint(9)).Return(false, nil).Once()
	f.communityRepo.On("AddJoinRequest", ctx, uint(3), uint(9)).Return(nil).Once()
	f.notifier.On("MembershipChanged", uint(3)).Return().Once()

	alreadyMember, err := f.svc.RequestJoin(ctx, 3, 9)

	assert.NoError(t, err)
	assert.False(t, alreadyMember)
	f.assertAll(t)
}

func TestCommunityService_RequestJoin_CreatorIsNoop(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()

	alreadyMember, err := f.svc.RequestJoin(ctx, 3, 1)

	// 创建者申请加入自己的社区: 幂等无操作
	assert.NoError(t, err)
	assert.True(t, alreadyMember)
	f.communityRepo.AssertNotCalled(t, "AddJoinRequest", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "MembershipChanged", mock.Anything)
}

func TestCommunityService_RequestJoin_MemberIsNoop(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()
	f.communityRepo.On("IsMember", ctx, uint(3), uint(9)).Return(true, nil).Once()

	alreadyMember, err := f.svc.RequestJoin(ctx, 3, 9)

	assert.NoError(t, err)
	assert.True(t, alreadyMember)
	f.communityRepo.AssertNotCalled(t, "AddJoinRequest", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommunityService_RequestJoin_DuplicateRequest(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()
	f.communityRepo.On("IsMember", ctx, uint(3), uint(9)).Return(false, nil).Once()
	f.communityRepo.On("HasJoinRequest", ctx, uint(3), uint(9)).Return(true, nil).Once()

	_, err := f.svc.RequestJoin(ctx, 3, 9)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrDuplicateJoinRequest))
	f.communityRepo.AssertNotCalled(t, "AddJoinRequest", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommunityService_RequestJoin_CommunityMissing(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()

	f.communityRepo.On("FindByID", ctx, uint(404)).Return(nil, repository.ErrNotFound).Once()

	_, err := f.svc.RequestJoin(ctx, 404, 9)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrCommunityNotFound))
}

// --- ApproveJoin / RejectJoin ---

func TestCommunityService_ApproveJoin_Success(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()
	f.communityRepo.On("ApproveJoinRequest", ctx, uint(3), uint(9)).Return(nil).Once()
	f.notifier.On("MembershipChanged", uint(3)).Return().Once()
	f.notifier.On("MemberApproved", uint(3), uint(9)).Return().Once()

	err := f.svc.ApproveJoin(ctx, 3, 9, 1)

	assert.NoError(t, err)
	f.assertAll(t)
}

func TestCommunityService_ApproveJoin_NotCreator(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()

	err := f.svc.ApproveJoin(ctx, 3, 9, 2)

	// 授权失败不触碰任何集合
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotAuthorized))
	f.communityRepo.AssertNotCalled(t, "ApproveJoinRequest", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "MembershipChanged", mock.Anything)
}

func TestCommunityService_ApproveJoin_NoPendingRequest(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	// 两次并发批准: 后到者观察不到待审批申请
	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()
	f.communityRepo.On("ApproveJoinRequest", ctx, uint(3), uint(9)).Return(repository.ErrNotFound).Once()

	err := f.svc.ApproveJoin(ctx, 3, 9, 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNoPendingRequest))
	f.notifier.AssertNotCalled(t, "MemberApproved", mock.Anything, mock.Anything)
}

func TestCommunityService_RejectJoin_Success(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()
	f.communityRepo.On("RemoveJoinRequest", ctx, uint(3), uint(9)).Return(nil).Once()
	f.notifier.On("MembershipChanged", uint(3)).Return().Once()

	err := f.svc.RejectJoin(ctx, 3, 9, 1)

	assert.NoError(t, err)
	f.notifier.AssertNotCalled(t, "MemberApproved", mock.Anything, mock.Anything)
	f.assertAll(t)
}

// --- Leave ---

func TestCommunityService_Leave_PostsSystemMessage(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()
	f.communityRepo.On("RemoveMember", ctx, uint(3), uint(9)).Return(nil).Once()
	f.messageRepo.On("Save", ctx, mock.MatchedBy(func(m *domain.CommunityMessage) bool {
		assert.Equal(t, domain.MessageKindSystem, m.Kind)
		assert.Equal(t, "System", m.SenderName)
		assert.Equal(t, "Priya has left the community", m.Text)
		return true
	})).Return(nil).Once()
	f.stateRepo.On("PushMessageToHistory", ctx, uint(3), mock.AnythingOfType("domain.CommunityMessage")).Return(nil).Once()
	f.notifier.On("MessageCreated", uint(3), mock.AnythingOfType("domain.CommunityMessage")).Return().Once()
	f.notifier.On("MembershipChanged", uint(3)).Return().Once()

	err := f.svc.Leave(ctx, 3, service.Identity{ID: 9, Name: "Priya"})

	assert.NoError(t, err)
	f.assertAll(t)
}

func TestCommunityService_Leave_NonMemberIsNoop(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()
	f.communityRepo.On("RemoveMember", ctx, uint(3), uint(42)).Return(repository.ErrNotFound).Once()
	f.messageRepo.On("Save", ctx, mock.AnythingOfType("*domain.CommunityMessage")).Return(nil).Once()
	f.stateRepo.On("PushMessageToHistory", ctx, uint(3), mock.AnythingOfType("domain.CommunityMessage")).Return(nil).Once()
	f.notifier.On("MessageCreated", uint(3), mock.AnythingOfType("domain.CommunityMessage")).Return().Once()
	f.notifier.On("MembershipChanged", uint(3)).Return().Once()

	// 非成员调用 leave 不报错
	err := f.svc.Leave(ctx, 3, service.Identity{ID: 42, Name: "Ghost"})
	assert.NoError(t, err)
}

// --- Kick ---

func TestCommunityService_Kick_Success(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}
	target := &domain.User{ID: 9, Name: "Ravi"}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()
	f.userRepo.On("FindByID", ctx, uint(9)).Return(target, nil).Once()
	f.communityRepo.On("RemoveMember", ctx, uint(3), uint(9)).Return(nil).Once()
	f.messageRepo.On("Save", ctx, mock.MatchedBy(func(m *domain.CommunityMessage) bool {
		return m.Text == "Ravi was kicked from the community" && m.Kind == domain.MessageKindSystem
	})).Return(nil).Once()
	f.stateRepo.On("PushMessageToHistory", ctx, uint(3), mock.AnythingOfType("domain.CommunityMessage")).Return(nil).Once()
	f.notifier.On("MessageCreated", uint(3), mock.AnythingOfType("domain.CommunityMessage")).Return().Once()
	f.notifier.On("UserKicked", uint(3), uint(9)).Return().Once()
	f.notifier.On("MembershipChanged", uint(3)).Return().Once()

	err := f.svc.Kick(ctx, 3, 9, 1)

	assert.NoError(t, err)
	f.assertAll(t)
}

func TestCommunityService_Kick_SelfKickRejected(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()

	err := f.svc.Kick(ctx, 3, 1, 1)

	// 创建者不能把自己踢出去, 状态不变
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrSelfKick))
	f.communityRepo.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "UserKicked", mock.Anything, mock.Anything)
}

func TestCommunityService_Kick_NotCreator(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()

	err := f.svc.Kick(ctx, 3, 9, 2)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotAuthorized))
	f.communityRepo.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommunityService_Kick_TargetNotMember(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	community := &domain.Community{ID: 3, CreatorID: 1}

	f.communityRepo.On("FindByID", ctx, uint(3)).Return(community, nil).Once()
	f.userRepo.On("FindByID", ctx, uint(9)).Return(&domain.User{ID: 9, Name: "Ravi"}, nil).Once()
	f.communityRepo.On("RemoveMember", ctx, uint(3), uint(9)).Return(repository.ErrNotFound).Once()

	err := f.svc.Kick(ctx, 3, 9, 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrMemberNotFound))
	f.notifier.AssertNotCalled(t, "UserKicked", mock.Anything, mock.Anything)
}

// --- GetMessages ---

func TestCommunityService_GetMessages_CacheHit(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	cached := []domain.CommunityMessage{
		{ID: 1, CommunityID: 3, Text: "first"},
		{ID: 2, CommunityID: 3, Text: "second"},
	}

	f.stateRepo.On("GetRecentMessages", ctx, uint(3), 2).Return(cached, nil).Once()

	messages, err := f.svc.GetMessages(ctx, 3, 2)

	assert.NoError(t, err)
	assert.Equal(t, cached, messages)
	f.messageRepo.AssertNotCalled(t, "FindByCommunity", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommunityService_GetMessages_CacheMissFallsBack(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()
	stored := []domain.CommunityMessage{
		{ID: 1, CommunityID: 3, Text: "first"},
		{ID: 2, CommunityID: 3, Text: "second"},
		{ID: 3, CommunityID: 3, Text: "third"},
	}

	// 缓存中只有部分消息, 不足 limit 时回落到消息日志
	f.stateRepo.On("GetRecentMessages", ctx, uint(3), 10).Return([]domain.CommunityMessage{stored[2]}, nil).Once()
	f.messageRepo.On("FindByCommunity", ctx, uint(3), 10).Return(stored, nil).Once()

	messages, err := f.svc.GetMessages(ctx, 3, 10)

	assert.NoError(t, err)
	assert.Equal(t, stored, messages)
	f.assertAll(t)
}

func TestCommunityService_GetMessages_LargeLimitSkipsCache(t *testing.T) {
	f := newCommunityFixture()
	ctx := context.Background()

	// 超过缓存容量的请求直接走消息日志
	f.messageRepo.On("FindByCommunity", ctx, uint(3), 200).Return([]domain.CommunityMessage{}, nil).Once()

	_, err := f.svc.GetMessages(ctx, 3, 200)

	assert.NoError(t, err)
	f.stateRepo.AssertNotCalled(t, "GetRecentMessages", mock.Anything, mock.Anything, mock.Anything)
}
