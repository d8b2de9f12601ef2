package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"civic-issue-portal/internal/domain"
)

// MessageRepository 是 repository.MessageRepository 的 mock 实现
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Save(ctx context.Context, message *domain.CommunityMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MessageRepository) FindByCommunity(ctx context.Context, communityID uint, limit int) ([]domain.CommunityMessage, error) {
	args := m.Called(ctx, communityID, limit)
	if messages, ok := args.Get(0).([]domain.CommunityMessage); ok {
		return messages, args.Error(1)
	}
	return nil, args.Error(1)
}
