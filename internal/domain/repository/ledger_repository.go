package repository

import (
	"context"
	"errors"
	"time"

	"llm-ledger-api/internal/domain/entity"
)

// ErrStorageUnavailable 账本存储不可用
var ErrStorageUnavailable = errors.New("ledger storage unavailable")

// LedgerFilter 账本查询条件，零值等价于全量升序
type LedgerFilter struct {
	Model    string
	Provider string
	Status   string
	// From 包含，To 不包含
	From   *time.Time
	To     *time.Time
	Order  SortOrder
	Limit  int
	Offset int
}

// Paginated 是否带分页参数
func (f LedgerFilter) Paginated() bool {
	return f.Limit > 0 || f.Offset > 0
}

// LedgerRepository 调用账本仓储接口
type LedgerRepository interface {
	// Append 追加记录并分配 id；CreatedAt 为零时使用当前 UTC 时间
	Append(ctx context.Context, rec *entity.InvocationRecord) (uint64, error)
	// ListAll 按 id 升序返回全部记录
	ListAll(ctx context.Context) ([]*entity.InvocationRecord, error)
	List(ctx context.Context, filter LedgerFilter) ([]*entity.InvocationRecord, error)
	Count(ctx context.Context, filter LedgerFilter) (int64, error)
}

// Matches 判断记录是否满足过滤条件（不含排序与分页）
func (f LedgerFilter) Matches(rec *entity.InvocationRecord) bool {
	if f.Model != "" && rec.Model != f.Model {
		return false
	}
	if f.Provider != "" && rec.Provider != f.Provider {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.From != nil && rec.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !rec.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}
