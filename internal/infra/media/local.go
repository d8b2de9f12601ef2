package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LocalStore 把上传的图片写到本地磁盘, 返回 /uploads 下的访问路径。
// 实现 service.MediaStore。
type LocalStore struct {
	baseDir   string
	publicURL string
}

// NewLocalStore 创建 LocalStore 实例, 目录不存在时自动创建。
// publicURL 是对外暴露的路径前缀, 例如 "/uploads"。
func NewLocalStore(baseDir, publicURL string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "uploads"
	}
	if publicURL == "" {
		publicURL = "/uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create upload dir %s: %w", baseDir, err)
	}
	return &LocalStore{baseDir: baseDir, publicURL: publicURL}, nil
}

// Upload 写入一份图片并返回其访问 URL。
// 对象名用 UUID, 避免并发上传互相覆盖。
func (s *LocalStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("media: empty upload")
	}

	name := uuid.NewString() + extensionFor(contentType)
	path := filepath.Join(s.baseDir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("media: write %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{"file": name, "size": len(data)}).Debug("Media file stored")
	return s.publicURL + "/" + name, nil
}

// BaseDir 返回磁盘目录, 供静态文件路由使用
func (s *LocalStore) BaseDir() string { return s.baseDir }

// extensionFor 根据 Content-Type 选择文件扩展名
func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
