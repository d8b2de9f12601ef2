package domain

import "time"

// 工单状态
const (
	IssueStatusPending    = "Pending"
	IssueStatusInProgress = "In Progress"
	IssueStatusResolved   = "Resolved"
)

// 工单优先级
const (
	IssuePriorityHigh   = "High"
	IssuePriorityMedium = "Medium"
	IssuePriorityLow    = "Low"
)

// Issue 表示市民上报的一个问题工单。
// Category/Priority 先写入兜底值，由后台分类任务异步修正。
type Issue struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"type:varchar(191);not null" json:"title"`
	Description     string    `gorm:"type:text;not null" json:"description"`
	ImageURL        string    `gorm:"type:varchar(255)" json:"imageURL"`
	Latitude        float64   `gorm:"not null" json:"latitude"`
	Longitude       float64   `gorm:"not null" json:"longitude"`
	Address         string    `gorm:"type:varchar(255)" json:"address"`
	Category        string    `gorm:"type:varchar(50);index" json:"category"`
	Classified      bool      `gorm:"not null;default:false" json:"-"` // 分类任务是否已成功执行
	Status          string    `gorm:"type:varchar(20);not null;default:Pending;index" json:"status"`
	Priority        string    `gorm:"type:varchar(10);not null;default:Medium" json:"priority"`
	AssignedTo      string    `gorm:"type:varchar(100)" json:"assignedTo"`
	ResolutionNotes string    `gorm:"type:text" json:"resolutionNotes,omitempty"`
	CreatedBy       uint      `gorm:"index;not null" json:"createdBy"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// IsValidIssueStatus 检查状态值是否合法。
func IsValidIssueStatus(status string) bool {
	return status == IssueStatusPending || status == IssueStatusInProgress || status == IssueStatusResolved
}
