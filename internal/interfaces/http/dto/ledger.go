package dto

import (
	"time"

	"llm-ledger-api/internal/application/invocation"
	"llm-ledger-api/internal/domain/entity"
)

// InvokeRequest 调用请求
type InvokeRequest struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Prompt   string `json:"prompt"`
}

// ToInput 转换为应用层输入
func (r *InvokeRequest) ToInput() invocation.Input {
	return invocation.Input{
		Provider: r.Provider,
		Model:    r.Model,
		Prompt:   r.Prompt,
	}
}

// InvokeResponse 调用响应
type InvokeResponse struct {
	ID        uint64  `json:"id"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
	Output    string  `json:"output"`
	LatencyMs float64 `json:"latency_ms"`
	Attempts  int     `json:"attempts"`
	CreatedAt string  `json:"created_at"`
}

// ToInvokeResponse 转换调用结果
func ToInvokeResponse(res *invocation.Result) *InvokeResponse {
	return &InvokeResponse{
		ID:        res.ID,
		Provider:  res.Provider,
		Model:     res.Model,
		Output:    res.Output,
		LatencyMs: res.LatencyMs,
		Attempts:  res.Attempts,
		CreatedAt: FormatTimestamp(res.CreatedAt),
	}
}

// RecordResponse 账本记录
type RecordResponse struct {
	ID        uint64  `json:"id"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
	Prompt    string  `json:"prompt"`
	Output    string  `json:"output"`
	LatencyMs float64 `json:"latency_ms"`
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	Attempts  int     `json:"attempts"`
	CreatedAt string  `json:"created_at"`
}

// ToRecordResponse 转换账本记录
func ToRecordResponse(rec *entity.InvocationRecord) *RecordResponse {
	return &RecordResponse{
		ID:        rec.ID,
		Provider:  rec.Provider,
		Model:     rec.Model,
		Prompt:    rec.Prompt,
		Output:    rec.Output,
		LatencyMs: rec.LatencyMs,
		Status:    rec.Status,
		Error:     rec.Error,
		Attempts:  rec.Attempts,
		CreatedAt: FormatTimestamp(rec.CreatedAt),
	}
}

// ToRecordListResponse 转换记录列表，空列表序列化为 []
func ToRecordListResponse(records []*entity.InvocationRecord) []*RecordResponse {
	out := make([]*RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, ToRecordResponse(rec))
	}
	return out
}

// FormatTimestamp 输出带 Z 的 UTC 时间
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
