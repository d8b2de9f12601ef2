package http

import (
	"io"
	"net/http"
	"strconv"

	"civic-issue-portal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 上传图片的大小上限 (字节)
const maxImageSize = 8 << 20

// IssueHandler 封装问题工单相关的 HTTP 处理逻辑
type IssueHandler struct {
	issueService *service.IssueService
}

// NewIssueHandler 创建 IssueHandler 实例
func NewIssueHandler(issueService *service.IssueService) *IssueHandler {
	if issueService == nil {
		panic("IssueService cannot be nil for IssueHandler")
	}
	return &IssueHandler{issueService: issueService}
}

// Report 处理工单上报 (POST /api/issues, multipart/form-data)。
// 图片字段可选, 其余字段来自表单。
func (h *IssueHandler) Report(c *gin.Context) {
	userID := c.GetUint("user_id")
	logCtx := logrus.WithField("user_id", userID)

	latitude, err := strconv.ParseFloat(c.PostForm("latitude"), 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid latitude")
		return
	}
	longitude, err := strconv.ParseFloat(c.PostForm("longitude"), 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid longitude")
		return
	}

	input := service.ReportIssueInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Latitude:    latitude,
		Longitude:   longitude,
		Address:     c.PostForm("address"),
		Category:    c.PostForm("category"),
		Priority:    c.PostForm("priority"),
	}

	if fileHeader, err := c.FormFile("image"); err == nil {
		if fileHeader.Size > maxImageSize {
			ErrorResponse(c, http.StatusBadRequest, "Image too large")
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			logCtx.WithError(err).Error("Handler.ReportIssue: Failed to open uploaded image")
			ErrorResponse(c, http.StatusInternalServerError, "Failed to read uploaded image")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
		if err != nil {
			logCtx.WithError(err).Error("Handler.ReportIssue: Failed to read uploaded image")
			ErrorResponse(c, http.StatusInternalServerError, "Failed to read uploaded image")
			return
		}
		input.Image = data
		input.ImageContentType = fileHeader.Header.Get("Content-Type")
	}

	issue, err := h.issueService.Report(c.Request.Context(), userID, input)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logCtx.WithField("issue_id", issue.ID).Info("Handler.ReportIssue: Issue reported")
	SuccessResponse(c, http.StatusCreated, issue)
}

// List 返回所有工单 (GET /api/issues)
func (h *IssueHandler) List(c *gin.Context) {
	issues, err := h.issueService.ListAll(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, issues)
}

// ListMine 返回当前用户上报的工单 (GET /api/issues/my)
func (h *IssueHandler) ListMine(c *gin.Context) {
	userID := c.GetUint("user_id")
	issues, err := h.issueService.ListByCreator(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, issues)
}

// Detail 返回单个工单 (GET /api/issues/:id)
func (h *IssueHandler) Detail(c *gin.Context) {
	issueID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	issue, err := h.issueService.Get(c.Request.Context(), issueID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, issue)
}

// UpdateStatusRequest 定义工单状态更新请求的结构体
type UpdateStatusRequest struct {
	Status          string `json:"status"`
	AssignedTo      string `json:"assignedTo"`
	ResolutionNotes string `json:"resolutionNotes"`
}

// UpdateStatus 更新工单状态 (PATCH /api/issues/:id/status, 管理端)
func (h *IssueHandler) UpdateStatus(c *gin.Context) {
	issueID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.UpdateIssueStatus: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	issue, err := h.issueService.UpdateStatus(c.Request.Context(), issueID, req.Status, req.AssignedTo, req.ResolutionNotes)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, issue)
}
