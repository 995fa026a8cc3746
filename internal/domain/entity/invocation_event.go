package entity

import "time"

// EventTypeInvocationRecorded 调用记录落库事件
const EventTypeInvocationRecorded = "invocation.recorded"

// InvocationRecordedEvent 记录落库后对外发布的事件载荷
type InvocationRecordedEvent struct {
	RecordID  uint64    `json:"record_id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Status    string    `json:"status"`
	LatencyMs float64   `json:"latency_ms"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// NewInvocationRecordedEvent 从记录构造事件（不携带 prompt/output 正文）
func NewInvocationRecordedEvent(rec *InvocationRecord) *InvocationRecordedEvent {
	return &InvocationRecordedEvent{
		RecordID:  rec.ID,
		Provider:  rec.Provider,
		Model:     rec.Model,
		Status:    rec.Status,
		LatencyMs: rec.LatencyMs,
		Attempts:  rec.Attempts,
		CreatedAt: rec.CreatedAt,
	}
}
