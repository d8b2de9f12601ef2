package http

import (
	"net/http"
	"strconv"

	"civic-issue-portal/internal/service"

	"github.com/gin-gonic/gin"
)

// LocationHandler 封装地理编码相关的 HTTP 处理逻辑
type LocationHandler struct {
	locationService *service.LocationService
}

// NewLocationHandler 创建 LocationHandler 实例
func NewLocationHandler(locationService *service.LocationService) *LocationHandler {
	if locationService == nil {
		panic("LocationService cannot be nil for LocationHandler")
	}
	return &LocationHandler{locationService: locationService}
}

// Search 正向地理编码 (GET /api/location/search?q=...)
func (h *LocationHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		ErrorResponse(c, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	point, err := h.locationService.Search(c.Request.Context(), query)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, point)
}

// Reverse 逆向地理编码 (GET /api/location/reverse?lat=...&lon=...)
func (h *LocationHandler) Reverse(c *gin.Context) {
	latitude, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid lat parameter")
		return
	}
	longitude, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid lon parameter")
		return
	}

	point, err := h.locationService.Reverse(c.Request.Context(), latitude, longitude)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, point)
}
