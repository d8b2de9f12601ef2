package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"civic-issue-portal/internal/domain"
)

// StateRepository 是 repository.StateRepository 的 mock 实现
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) PushMessageToHistory(ctx context.Context, communityID uint, message domain.CommunityMessage) error {
	args := m.Called(ctx, communityID, message)
	return args.Error(0)
}

func (m *StateRepository) GetRecentMessages(ctx context.Context, communityID uint, limit int) ([]domain.CommunityMessage, error) {
	args := m.Called(ctx, communityID, limit)
	if messages, ok := args.Get(0).([]domain.CommunityMessage); ok {
		return messages, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, duration)
	return args.Bool(0), args.Error(1)
}
