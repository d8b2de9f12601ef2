package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"civic-issue-portal/internal/domain"

	"github.com/sirupsen/logrus"
)

// HTTPClassifier 调用外部 AI 分类服务, 输入工单文本,
// 返回分类与优先级。实现 service.Classifier。
type HTTPClassifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPClassifier 创建 HTTPClassifier 实例
func NewHTTPClassifier(endpoint, apiKey string) *HTTPClassifier {
	if endpoint == "" {
		panic("Classifier endpoint cannot be empty")
	}
	return &HTTPClassifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type classifyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type classifyResponse struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
}

// Classify 发送分类请求。返回的分类不在已知类别内时落回默认分类。
func (c *HTTPClassifier) Classify(ctx context.Context, title, description string) (string, string, error) {
	body, err := json.Marshal(classifyRequest{Title: title, Description: description})
	if err != nil {
		return "", "", fmt.Errorf("classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("classifier: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("classifier: unexpected status %d", resp.StatusCode)
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("classifier: decode response: %w", err)
	}

	category := result.Category
	if !domain.IsValidCategory(category) {
		logrus.WithField("category", category).Warn("Classifier returned unknown category, using default")
		category = domain.DefaultCommunityCategory
	}
	priority := result.Priority
	switch priority {
	case domain.IssuePriorityLow, domain.IssuePriorityMedium, domain.IssuePriorityHigh:
	default:
		priority = domain.IssuePriorityMedium
	}

	return category, priority, nil
}
