package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"civic-issue-portal/internal/domain"
	"civic-issue-portal/internal/repository"
	"civic-issue-portal/internal/tasks"
)

// Classifier 是外部 AI 分类服务的边界。输入工单文本，
// 输出分类与优先级；调用失败时由调用方落兜底值。
type Classifier interface {
	Classify(ctx context.Context, title, description string) (category, priority string, err error)
}

// MediaStore 是外部图片存储的边界：写入字节，返回可访问的 URL。
type MediaStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (url string, err error)
}

// TaskEnqueuer 抽象 asynq 客户端的入队操作，便于测试。
// *asynq.Client 直接满足该接口。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReportIssueInput 是上报工单的输入。
type ReportIssueInput struct {
	Title            string
	Description      string
	Image            []byte
	ImageContentType string
	Latitude         float64
	Longitude        float64
	Address          string
	Category         string
	Priority         string
}

// IssueService 负责问题工单的上报、查询与状态流转。
type IssueService struct {
	issueRepo  repository.IssueRepository
	media      MediaStore
	classifier Classifier
	enqueuer   TaskEnqueuer
}

// NewIssueService 创建 IssueService 实例。
func NewIssueService(issueRepo repository.IssueRepository, media MediaStore, classifier Classifier, enqueuer TaskEnqueuer) *IssueService {
	if issueRepo == nil {
		panic("IssueRepository cannot be nil for IssueService")
	}
	return &IssueService{
		issueRepo:  issueRepo,
		media:      media,
		classifier: classifier,
		enqueuer:   enqueuer,
	}
}

// Report 上报一个新工单。图片先写入媒体存储换取 URL，
// 工单本体落库后把分类任务异步入队；入队失败不影响工单创建，
// 周期任务会把未分类的工单重新捞起。
func (s *IssueService) Report(ctx context.Context, userID uint, input ReportIssueInput) (*domain.Issue, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "title": input.Title})

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.Title == "" || input.Description == "" {
		return nil, fmt.Errorf("%w: title and description are required", ErrValidation)
	}
	if input.Latitude == 0 && input.Longitude == 0 {
		return nil, fmt.Errorf("%w: location is required", ErrValidation)
	}

	var imageURL string
	if len(input.Image) > 0 && s.media != nil {
		url, err := s.media.Upload(ctx, input.Image, input.ImageContentType)
		if err != nil {
			logCtx.WithError(err).Error("Failed to upload issue image")
			return nil, ErrInternalServer
		}
		imageURL = url
	}

	category := input.Category
	if category == "" {
		category = domain.DefaultCommunityCategory // 兜底，待分类任务修正
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.IssuePriorityMedium
	}

	issue := &domain.Issue{
		Title:       input.Title,
		Description: input.Description,
		ImageURL:    imageURL,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Address:     input.Address,
		Category:    category,
		Priority:    priority,
		Status:      domain.IssueStatusPending,
		CreatedBy:   userID,
	}
	if err := s.issueRepo.Save(ctx, issue); err != nil {
		logCtx.WithError(err).Error("Failed to save issue")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("issue_id", issue.ID)

	if s.enqueuer != nil {
		payload, err := tasks.NewIssueClassifyTask(issue.ID)
		if err != nil {
			logCtx.WithError(err).Warn("Failed to build classify task payload")
		} else if _, err := s.enqueuer.EnqueueContext(ctx, asynq.NewTask(tasks.TypeIssueClassify, payload)); err != nil {
			logCtx.WithError(err).Warn("Failed to enqueue classify task, periodic sweep will retry")
		}
	}

	logCtx.Info("Issue reported")
	return issue, nil
}

// ListAll 返回所有工单。
func (s *IssueService) ListAll(ctx context.Context) ([]domain.Issue, error) {
	issues, err := s.issueRepo.FindAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list issues")
		return nil, ErrInternalServer
	}
	return issues, nil
}

// ListByCreator 返回某用户上报的工单。
func (s *IssueService) ListByCreator(ctx context.Context, userID uint) ([]domain.Issue, error) {
	issues, err := s.issueRepo.FindByCreator(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list user issues")
		return nil, ErrInternalServer
	}
	return issues, nil
}

// Get 返回单个工单。
func (s *IssueService) Get(ctx context.Context, issueID uint) (*domain.Issue, error) {
	issue, err := s.issueRepo.FindByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIssueNotFound
		}
		logrus.WithError(err).WithField("issue_id", issueID).Error("Failed to load issue")
		return nil, ErrInternalServer
	}
	return issue, nil
}

// UpdateStatus 更新工单状态/指派/处理记录 (管理端操作)。
func (s *IssueService) UpdateStatus(ctx context.Context, issueID uint, status, assignedTo, resolutionNotes string) (*domain.Issue, error) {
	logCtx := logrus.WithFields(logrus.Fields{"issue_id": issueID, "status": status})

	if status != "" && !domain.IsValidIssueStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	issue, err := s.Get(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if status != "" {
		issue.Status = status
	}
	if assignedTo != "" {
		issue.AssignedTo = assignedTo
	}
	if resolutionNotes != "" {
		issue.ResolutionNotes = resolutionNotes
	}

	if err := s.issueRepo.Save(ctx, issue); err != nil {
		logCtx.WithError(err).Error("Failed to update issue")
		return nil, ErrInternalServer
	}
	logCtx.Info("Issue updated")
	return issue, nil
}

// Classify 调用外部分类器并回写结果，由后台 worker 执行。
// 分类器失败时保留兜底分类并返回错误，让任务队列重试。
func (s *IssueService) Classify(ctx context.Context, issueID uint) error {
	logCtx := logrus.WithField("issue_id", issueID)

	issue, err := s.issueRepo.FindByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logCtx.Warn("Classify skipped: issue no longer exists")
			return nil
		}
		return fmt.Errorf("classify: load issue %d: %w", issueID, err)
	}
	if issue.Classified {
		return nil
	}
	if s.classifier == nil {
		logCtx.Warn("No classifier configured, keeping fallback labels")
		return nil
	}

	category, priority, err := s.classifier.Classify(ctx, issue.Title, issue.Description)
	if err != nil {
		logCtx.WithError(err).Warn("Classifier call failed, keeping fallback labels")
		return fmt.Errorf("classify: issue %d: %w", issueID, err)
	}

	issue.Category = category
	issue.Priority = priority
	issue.Classified = true
	if err := s.issueRepo.Save(ctx, issue); err != nil {
		return fmt.Errorf("classify: save issue %d: %w", issueID, err)
	}
	logCtx.WithFields(logrus.Fields{"category": category, "priority": priority}).Info("Issue classified")
	return nil
}

// UnclassifiedIssues 返回待分类工单 ID，供周期任务使用。
func (s *IssueService) UnclassifiedIssues(ctx context.Context, limit int) ([]uint, error) {
	return s.issueRepo.FindUnclassified(ctx, limit)
}
