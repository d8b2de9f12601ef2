package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"civic-issue-portal/internal/domain"
)

// IssueRepository 是 repository.IssueRepository 的 mock 实现
type IssueRepository struct {
	mock.Mock
}

func (m *IssueRepository) Save(ctx context.Context, issue *domain.Issue) error {
	args := m.Called(ctx, issue)
	return args.Error(0)
}

func (m *IssueRepository) FindByID(ctx context.Context, id uint) (*domain.Issue, error) {
	args := m.Called(ctx, id)
	if issue, ok := args.Get(0).(*domain.Issue); ok {
		return issue, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *IssueRepository) FindAll(ctx context.Context) ([]domain.Issue, error) {
	args := m.Called(ctx)
	if issues, ok := args.Get(0).([]domain.Issue); ok {
		return issues, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *IssueRepository) FindByCreator(ctx context.Context, userID uint) ([]domain.Issue, error) {
	args := m.Called(ctx, userID)
	if issues, ok := args.Get(0).([]domain.Issue); ok {
		return issues, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *IssueRepository) FindUnclassified(ctx context.Context, limit int) ([]uint, error) {
	args := m.Called(ctx, limit)
	if ids, ok := args.Get(0).([]uint); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
