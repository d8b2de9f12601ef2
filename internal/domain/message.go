package domain

import "time"

// 消息类型：普通用户消息或系统消息 (离开/踢出广播)。
const (
	MessageKindUser   = "user"
	MessageKindSystem = "system"
)

// CommunityMessage 表示社区聊天中的一条消息。
// 消息一旦写入即不可变；SenderName 是发送时刻的快照，
// 用户之后改名不影响历史消息的展示。
type CommunityMessage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CommunityID uint      `gorm:"index;not null" json:"communityId"`
	SenderID    uint      `gorm:"index" json:"senderId"` // 系统消息为 0
	SenderName  string    `gorm:"type:varchar(100);not null" json:"senderName"`
	Kind        string    `gorm:"type:varchar(10);not null;default:user" json:"kind"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}
