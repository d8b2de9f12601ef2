package http

import (
	"net/http"
	"strconv"

	"civic-issue-portal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CommunityHandler 封装社区相关的 HTTP 处理逻辑
type CommunityHandler struct {
	communityService *service.CommunityService
}

// NewCommunityHandler 创建 CommunityHandler 实例
func NewCommunityHandler(communityService *service.CommunityService) *CommunityHandler {
	if communityService == nil {
		panic("CommunityService cannot be nil for CommunityHandler")
	}
	return &CommunityHandler{communityService: communityService}
}

// CreateCommunityRequest 定义创建社区请求的结构体
type CreateCommunityRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Avatar      string `json:"avatar"`
}

// Create 处理创建社区请求 (POST /api/communities)
func (h *CommunityHandler) Create(c *gin.Context) {
	var req CreateCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateCommunity: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	userID := c.GetUint("user_id")
	community, err := h.communityService.Create(c.Request.Context(), userID, req.Name, req.Description, req.Category, req.Avatar)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, community)
}

// List 返回所有社区 (GET /api/communities)
func (h *CommunityHandler) List(c *gin.Context) {
	communities, err := h.communityService.List(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, communities)
}

// Detail 返回单个社区及成员/申请列表 (GET /api/communities/:id)
func (h *CommunityHandler) Detail(c *gin.Context) {
	communityID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.communityService.GetDetail(c.Request.Context(), communityID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, detail)
}

// Messages 返回社区最近的聊天消息 (GET /api/communities/:id/messages)
func (h *CommunityHandler) Messages(c *gin.Context) {
	communityID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			ErrorResponse(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	messages, err := h.communityService.GetMessages(c.Request.Context(), communityID, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, messages)
}

// Join 记录一条入会申请 (POST /api/communities/:id/join)
func (h *CommunityHandler) Join(c *gin.Context) {
	communityID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	userID := c.GetUint("user_id")
	alreadyMember, err := h.communityService.RequestJoin(c.Request.Context(), communityID, userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	if alreadyMember {
		SuccessResponse(c, http.StatusOK, gin.H{"message": "Already a member"})
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Join request submitted"})
}

// Leave 将当前用户移出社区 (POST /api/communities/:id/leave)
func (h *CommunityHandler) Leave(c *gin.Context) {
	communityID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	identity := service.Identity{
		ID:   c.GetUint("user_id"),
		Name: c.GetString("user_name"),
	}
	if err := h.communityService.Leave(c.Request.Context(), communityID, identity); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Left community"})
}

// Approve 由创建者批准一条入会申请 (POST /api/communities/:id/approve/:userId)
func (h *CommunityHandler) Approve(c *gin.Context) {
	communityID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetUserID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	actingUserID := c.GetUint("user_id")
	if err := h.communityService.ApproveJoin(c.Request.Context(), communityID, targetUserID, actingUserID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Join request approved"})
}

// Reject 由创建者拒绝一条入会申请 (POST /api/communities/:id/reject/:userId)
func (h *CommunityHandler) Reject(c *gin.Context) {
	communityID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetUserID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	actingUserID := c.GetUint("user_id")
	if err := h.communityService.RejectJoin(c.Request.Context(), communityID, targetUserID, actingUserID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Join request rejected"})
}

// Kick 由创建者将成员移出社区 (POST /api/communities/:id/kick/:userId)
func (h *CommunityHandler) Kick(c *gin.Context) {
	communityID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetUserID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	actingUserID := c.GetUint("user_id")
	if err := h.communityService.Kick(c.Request.Context(), communityID, targetUserID, actingUserID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Member removed"})
}

// parseIDParam 解析 URL 中的数字 ID 参数, 失败时直接写 400 响应
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || parsed == 0 {
		logrus.Warnf("Invalid %s parameter: %s", name, raw)
		ErrorResponse(c, http.StatusBadRequest, "Invalid "+name+" parameter")
		return 0, false
	}
	return uint(parsed), true
}
