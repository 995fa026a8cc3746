// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
	"unicode/utf8"
)

// 调用记录状态
const (
	InvocationStatusOK    = "ok"
	InvocationStatusError = "error"
)

// MaxModelLength model 列宽度
const MaxModelLength = 100

// InvocationRecord 一次 LLM 调用的账本记录，只插入不修改
type InvocationRecord struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Provider  string    `json:"provider" gorm:"type:varchar(50);not null;index"`
	Model     string    `json:"model" gorm:"type:varchar(100);not null;index"`
	Prompt    string    `json:"prompt" gorm:"type:text;not null"`
	Output    string    `json:"output" gorm:"type:text;not null"`
	LatencyMs float64   `json:"latency_ms" gorm:"not null"`
	Status    string    `json:"status" gorm:"type:varchar(20);not null;index"`
	Error     string    `json:"error,omitempty" gorm:"type:text;not null"`
	Attempts  int       `json:"attempts" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
}

// TableName 表名
func (InvocationRecord) TableName() string {
	return "invocation_records"
}

// Succeeded 是否调用成功
func (r *InvocationRecord) Succeeded() bool {
	return r.Status == InvocationStatusOK
}

// Clone 返回记录副本，避免调用方修改存储内部状态
func (r *InvocationRecord) Clone() *InvocationRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// ValidText 文本列可存储：合法 UTF-8 且不含 0x00（PostgreSQL text 拒收 NUL）
func ValidText(s string) bool {
	return utf8.ValidString(s) && strings.IndexByte(s, 0) < 0
}

// SanitizeText 去掉 NUL 并替换非法 UTF-8，用于外部返回的输出与错误文本
func SanitizeText(s string) string {
	if ValidText(s) {
		return s
	}
	return strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "\uFFFD")
}
