// Package domain 定义了应用程序中使用的数据结构 (数据库模型)。
package domain

import "time"

// 用户角色常量
const (
	RoleUser   = "user"
	RoleAdmin  = "admin"
	RoleWorker = "worker"
)

// User 表示应用程序中的用户。
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(100);not null" json:"name"`
	Email      string    `gorm:"type:varchar(191);uniqueIndex:idx_email;not null" json:"email"`
	Password   string    `gorm:"type:text;not null" json:"-"` // 存储的是哈希后的密码，不能为空
	Role       string    `gorm:"type:varchar(20);not null;default:user" json:"role"`
	Department string    `gorm:"type:varchar(100)" json:"department,omitempty"` // 仅 worker 角色使用
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"-"`
}

// UserSummary 是对外展示用的用户摘要 (展开 members/joinRequests 时使用)。
type UserSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
