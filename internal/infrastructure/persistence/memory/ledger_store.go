// Package memory 提供进程内账本存储，用于本地开发与测试
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"llm-ledger-api/internal/domain/entity"
	"llm-ledger-api/internal/domain/repository"
)

// LedgerStore 基于切片的账本存储
type LedgerStore struct {
	mu      sync.RWMutex
	records []*entity.InvocationRecord
	nextID  uint64
	now     func() time.Time
}

// NewLedgerStore 创建内存账本
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Append 追加记录
func (s *LedgerStore) Append(ctx context.Context, rec *entity.InvocationRecord) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := rec.Clone()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	row.CreatedAt = row.CreatedAt.UTC()
	if n := len(s.records); n > 0 && row.CreatedAt.Before(s.records[n-1].CreatedAt) {
		row.CreatedAt = s.records[n-1].CreatedAt
	}

	row.ID = s.nextID
	s.nextID++
	s.records = append(s.records, row)

	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	return row.ID, nil
}

// ListAll 按 id 升序返回全部记录
func (s *LedgerStore) ListAll(ctx context.Context) ([]*entity.InvocationRecord, error) {
	return s.List(ctx, repository.LedgerFilter{})
}

// List 按条件查询
func (s *LedgerStore) List(ctx context.Context, filter repository.LedgerFilter) ([]*entity.InvocationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}

	s.mu.RLock()
	matched := make([]*entity.InvocationRecord, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Matches(rec) {
			matched = append(matched, rec.Clone())
		}
	}
	s.mu.RUnlock()

	if filter.Order == repository.SortOrderDesc {
		slices.Reverse(matched)
	}
	return paginate(matched, filter.Offset, filter.Limit), nil
}

// Count 统计满足条件的记录数
func (s *LedgerStore) Count(ctx context.Context, filter repository.LedgerFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, rec := range s.records {
		if filter.Matches(rec) {
			total++
		}
	}
	return total, nil
}

// HealthCheck 内存存储始终可用
func (s *LedgerStore) HealthCheck(context.Context) error {
	return nil
}

func paginate(records []*entity.InvocationRecord, offset, limit int) []*entity.InvocationRecord {
	if offset > 0 {
		if offset >= len(records) {
			return []*entity.InvocationRecord{}
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
