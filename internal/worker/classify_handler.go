package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"civic-issue-portal/internal/service"
	"civic-issue-portal/internal/tasks"
)

// IssueClassifyHandler 处理工单分类任务
type IssueClassifyHandler struct {
	issueService *service.IssueService
	enqueuer     service.TaskEnqueuer
}

// NewIssueClassifyHandler 创建 Handler 实例
func NewIssueClassifyHandler(issueService *service.IssueService, enqueuer service.TaskEnqueuer) *IssueClassifyHandler {
	return &IssueClassifyHandler{issueService: issueService, enqueuer: enqueuer}
}

// ProcessTask 实现 asynq.Handler 接口，对单个工单执行分类。
func (h *IssueClassifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	currentRetry, _ := asynq.GetRetryCount(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"retry":     currentRetry,
	})

	var payload tasks.IssueClassifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal classify task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithField("issue_id", payload.IssueID)
	logCtx.Info("Processing issue classify task...")

	if err := h.issueService.Classify(ctx, payload.IssueID); err != nil {
		return fmt.Errorf("failed to classify issue %d: %w", payload.IssueID, err)
	}

	logCtx.Info("Issue classify task processed successfully")
	return nil
}

// ProcessSweep 处理周期扫描任务：把仍未分类的工单重新入队。
func (h *IssueClassifyHandler) ProcessSweep(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())
	logCtx.Info("Processing classify sweep task...")

	ids, err := h.issueService.UnclassifiedIssues(ctx, 50)
	if err != nil {
		return fmt.Errorf("failed to list unclassified issues: %w", err)
	}
	if len(ids) == 0 {
		logCtx.Debug("No unclassified issues")
		return nil
	}

	for _, id := range ids {
		payload, err := tasks.NewIssueClassifyTask(id)
		if err != nil {
			logCtx.WithError(err).Warnf("Failed to build payload for issue %d", id)
			continue
		}
		if _, err := h.enqueuer.EnqueueContext(ctx, asynq.NewTask(tasks.TypeIssueClassify, payload), asynq.Queue("low")); err != nil {
			logCtx.WithError(err).Warnf("Failed to re-enqueue classify task for issue %d", id)
		}
	}

	logCtx.WithField("count", len(ids)).Info("Classify sweep enqueued pending issues")
	return nil
}
