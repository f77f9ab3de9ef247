// Package model 包含了应用的数据模型定义。
package model

import "time"

// ChatMessage 代表存储在 Redis 中的单条对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatHistory 对应于数据库中的 chat_history 表，持久化每一轮问答。
type ChatHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	SessionID string    `gorm:"type:varchar(64);index" json:"sessionId"`
	Role      string    `gorm:"type:varchar(20);not null" json:"role"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Severity  string    `gorm:"type:varchar(20)" json:"severity"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (ChatHistory) TableName() string {
	return "chat_history"
}
