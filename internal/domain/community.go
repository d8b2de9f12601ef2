package domain

import "time"

// 社区分类，固定集合，默认 "General"。
var CommunityCategories = []string{
	"Road & Traffic",
	"Water & Sanitation",
	"Electricity",
	"Public Safety",
	"Environment",
	"Public Health",
	"Parks & Recreation",
	"General",
}

const (
	DefaultCommunityCategory = "General"
	DefaultCommunityAvatar   = "🏘️"
)

// IsValidCategory 检查分类是否属于固定集合。
func IsValidCategory(category string) bool {
	for _, c := range CommunityCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Community 表示一个社区。创建者在创建时自动成为成员。
type Community struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(191);uniqueIndex:idx_community_name;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"type:varchar(50);not null;default:General" json:"category"`
	Avatar      string    `gorm:"type:varchar(20)" json:"avatar"`
	CreatorID   uint      `gorm:"index;not null" json:"createdBy"` // 创建者不可变更
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"-"`
}

// CommunityMember 是社区成员关系表。
// (CommunityID, UserID) 上的唯一索引保证同一用户不会重复入会。
type CommunityMember struct {
	ID          uint      `gorm:"primaryKey"`
	CommunityID uint      `gorm:"not null;index;uniqueIndex:uk_member_community_user"`
	UserID      uint      `gorm:"not null;index;uniqueIndex:uk_member_community_user"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// JoinRequest 是等待创建者审批的入会申请。
// 唯一索引保证同一用户对同一社区只能有一条待审批记录。
// 业务层保证它与 CommunityMember 互斥。
type JoinRequest struct {
	ID          uint      `gorm:"primaryKey"`
	CommunityID uint      `gorm:"not null;index;uniqueIndex:uk_request_community_user"`
	UserID      uint      `gorm:"not null;index;uniqueIndex:uk_request_community_user"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// CommunityDetail 是查询单个社区时返回的完整视图，
// members/createdBy/joinRequests 都已展开为用户摘要。
type CommunityDetail struct {
	Community
	Creator      UserSummary   `json:"creator"`
	Members      []UserSummary `json:"members"`
	JoinRequests []UserSummary `json:"joinRequests"`
}
