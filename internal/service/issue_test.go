package service_test

import (
	"context"
	"errors"
	"testing"

	"civic-issue-portal/internal/domain"
	"civic-issue-portal/internal/repository"
	"civic-issue-portal/internal/repository/mocks"
	"civic-issue-portal/internal/service"
	"civic-issue-portal/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, title, description string) (string, string, error) {
	args := m.Called(ctx, title, description)
	return args.String(0), args.String(1), args.Error(2)
}

type mockMediaStore struct {
	mock.Mock
}

func (m *mockMediaStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, data, contentType)
	return args.String(0), args.Error(1)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if info, ok := args.Get(0).(*asynq.TaskInfo); ok {
		return info, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- Report ---

func TestIssueService_Report_Success(t *testing.T) {
	mockRepo := new(mocks.IssueRepository)
	media := new(mockMediaStore)
	enqueuer := new(mockEnqueuer)
	svc := service.NewIssueService(mockRepo, media, nil, enqueuer)
	ctx := context.Background()

	image := []byte{0xff, 0xd8, 0xff}
	media.On("Upload", ctx, image, "image/jpeg").Return("/uploads/abc.jpg", nil).Once()

	mockRepo.On("Save", ctx, mock.MatchedBy(func(issue *domain.Issue) bool {
		assert.Equal(t, "Broken streetlight", issue.Title)
		assert.Equal(t, "/uploads/abc.jpg", issue.ImageURL)
		assert.Equal(t, domain.IssueStatusPending, issue.Status)
		assert.Equal(t, domain.IssuePriorityMedium, issue.Priority, "缺省优先级应为 Medium")
		assert.Equal(t, uint(7), issue.CreatedBy)
		assert.False(t, issue.Classified)
		return true
	})).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Issue).ID = 11
		}).
		Return(nil).
		Once()

	enqueuer.On("EnqueueContext", ctx, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == tasks.TypeIssueClassify
	})).Return(&asynq.TaskInfo{}, nil).Once()

	issue, err := svc.Report(ctx, 7, service.ReportIssueInput{
		Title:            "Broken streetlight",
		Description:      "Pole 14 is dark at night",
		Image:            image,
		ImageContentType: "image/jpeg",
		Latitude:         12.97,
		Longitude:        77.59,
	})

	assert.NoError(t, err)
	require.NotNil(t, issue)
	assert.Equal(t, uint(11), issue.ID)
	mockRepo.AssertExpectations(t)
	media.AssertExpectations(t)
	enqueuer.AssertExpectations(t)
}

func TestIssueService_Report_MissingFields(t *testing.T) {
	mockRepo := new(mocks.IssueRepository)
	svc := service.NewIssueService(mockRepo, nil, nil, nil)

	_, err := svc.Report(context.Background(), 7, service.ReportIssueInput{Title: "   "})

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrValidation))
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestIssueService_Report_EnqueueFailureDoesNotFailReport(t *testing.T) {
	mockRepo := new(mocks.IssueRepository)
	enqueuer := new(mockEnqueuer)
	svc := service.NewIssueService(mockRepo, nil, nil, enqueuer)
	ctx := context.Background()

	mockRepo.On("Save", ctx, mock.AnythingOfType("*domain.Issue")).Return(nil).Once()
	enqueuer.On("EnqueueContext", ctx, mock.AnythingOfType("*asynq.Task")).
		Return(nil, errors.New("redis down")).
		Once()

	// 入队失败只记日志, 周期扫描会兜底
	issue, err := svc.Report(ctx, 7, service.ReportIssueInput{
		Title:       "Pothole",
		Description: "Deep pothole near the market",
		Latitude:    12.9,
		Longitude:   77.5,
	})

	assert.NoError(t, err)
	assert.NotNil(t, issue)
	enqueuer.AssertExpectations(t)
}

// --- Classify ---

func TestIssueService_Classify_Success(t *testing.T) {
	mockRepo := new(mocks.IssueRepository)
	cls := new(mockClassifier)
	svc := service.NewIssueService(mockRepo, nil, cls, nil)
	ctx := context.Background()

	issue := &domain.Issue{ID: 11, Title: "Pothole", Description: "Deep pothole", Category: domain.DefaultCommunityCategory}
	mockRepo.On("FindByID", ctx, uint(11)).Return(issue, nil).Once()
	cls.On("Classify", ctx, "Pothole", "Deep pothole").Return("Roads", domain.IssuePriorityHigh, nil).Once()
	mockRepo.On("Save", ctx, mock.MatchedBy(func(saved *domain.Issue) bool {
		return saved.Category == "Roads" && saved.Priority == domain.IssuePriorityHigh && saved.Classified
	})).Return(nil).Once()

	err := svc.Classify(ctx, 11)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	cls.AssertExpectations(t)
}

func TestIssueService_Classify_AlreadyClassifiedSkips(t *testing.T) {
	mockRepo := new(mocks.IssueRepository)
	cls := new(mockClassifier)
	svc := service.NewIssueService(mockRepo, nil, cls, nil)
	ctx := context.Background()

	mockRepo.On("FindByID", ctx, uint(11)).Return(&domain.Issue{ID: 11, Classified: true}, nil).Once()

	err := svc.Classify(ctx, 11)

	assert.NoError(t, err)
	cls.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssueService_Classify_MissingIssueSkips(t *testing.T) {
	mockRepo := new(mocks.IssueRepository)
	svc := service.NewIssueService(mockRepo, nil, nil, nil)
	ctx := context.Background()

	mockRepo.On("FindByID", ctx, uint(404)).Return(nil, repository.ErrNotFound).Once()

	// 工单已删除时任务成功返回, 不会无限重试
	err := svc.Classify(ctx, 404)
	assert.NoError(t, err)
}

func TestIssueService_Classify_ClassifierFailurePropagates(t *testing.T) {
	mockRepo := new(mocks.IssueRepository)
	cls := new(mockClassifier)
	svc := service.NewIssueService(mockRepo, nil, cls, nil)
	ctx := context.Background()

	mockRepo.On("FindByID", ctx, uint(11)).Return(&domain.Issue{ID: 11, Title: "a", Description: "b"}, nil).Once()
	cls.On("Classify", ctx, "a", "b").Return("", "", errors.New("model timeout")).Once()

	// 失败要传播出去, 任务队列才会重试
	err := svc.Classify(ctx, 11)
	require.Error(t, err)
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- UpdateStatus ---

func TestIssueService_UpdateStatus_Success(t *testing.T) {
	mockRepo := new(mocks.IssueRepository)
	svc := service.NewIssueService(mockRepo, nil, nil, nil)
	ctx := context.Background()

	issue := &domain.Issue{ID: 11, Status: domain.IssueStatusPending}
	mockRepo.On("FindByID", ctx, uint(11)).Return(issue, nil).Once()
	mockRepo.On("Save", ctx, mock.MatchedBy(func(saved *domain.Issue) bool {
		return saved.Status == domain.IssueStatusResolved && saved.ResolutionNotes == "Replaced the bulb"
	})).Return(nil).Once()

	updated, err := svc.UpdateStatus(ctx, 11, domain.IssueStatusResolved, "", "Replaced the bulb")

	assert.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, domain.IssueStatusResolved, updated.Status)
	mockRepo.AssertExpectations(t)
}

func TestIssueService_UpdateStatus_InvalidStatus(t *testing.T) {
	mockRepo := new(mocks.IssueRepository)
	svc := service.NewIssueService(mockRepo, nil, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), 11, "Done", "", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrValidation))
	mockRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}
