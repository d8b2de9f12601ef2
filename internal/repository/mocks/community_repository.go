package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"civic-issue-portal/internal/domain"
)

// CommunityRepository 是 repository.CommunityRepository 的 mock 实现
type CommunityRepository struct {
	mock.Mock
}

func (m *CommunityRepository) Create(ctx context.Context, community *domain.Community) error {
	args := m.Called(ctx, community)
	return args.Error(0)
}

func (m *CommunityRepository) FindByID(ctx context.Context, id uint) (*domain.Community, error) {
	args := m.Called(ctx, id)
	if community, ok := args.Get(0).(*domain.Community); ok {
		return community, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CommunityRepository) FindDetailByID(ctx context.Context, id uint) (*domain.CommunityDetail, error) {
	args := m.Called(ctx, id)
	if detail, ok := args.Get(0).(*domain.CommunityDetail); ok {
		return detail, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CommunityRepository) FindAll(ctx context.Context) ([]domain.Community, error) {
	args := m.Called(ctx)
	if communities, ok := args.Get(0).([]domain.Community); ok {
		return communities, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CommunityRepository) IsMember(ctx context.Context, communityID, userID uint) (bool, error) {
	args := m.Called(ctx, communityID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *CommunityRepository) HasJoinRequest(ctx context.Context, communityID, userID uint) (bool, error) {
	args := m.Called(ctx, communityID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *CommunityRepository) AddJoinRequest(ctx context.Context, communityID, userID uint) error {
	args := m.Called(ctx, communityID, userID)
	return args.Error(0)
}

func (m *CommunityRepository) RemoveJoinRequest(ctx context.Context, communityID, userID uint) error {
	args := m.Called(ctx, communityID, userID)
	return args.Error(0)
}

func (m *CommunityRepository) ApproveJoinRequest(ctx context.Context, communityID, userID uint) error {
	args := m.Called(ctx, communityID, userID)
	return args.Error(0)
}

func (m *CommunityRepository) AddMember(ctx context.Context, communityID, userID uint) error {
	args := m.Called(ctx, communityID, userID)
	return args.Error(0)
}

func (m *CommunityRepository) RemoveMember(ctx context.Context, communityID, userID uint) error {
	args := m.Called(ctx, communityID, userID)
	return args.Error(0)
}
