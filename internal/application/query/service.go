// Package query 提供账本只读查询
package query

import (
	"context"
	"slices"

	"llm-ledger-api/internal/domain/entity"
	"llm-ledger-api/internal/domain/repository"
	"llm-ledger-api/pkg/errors"
	"llm-ledger-api/pkg/tracer"
)

// Filter 查询条件
type Filter = repository.LedgerFilter

// Service 账本查询服务
type Service struct {
	ledger repository.LedgerRepository
}

// NewService 创建查询服务
func NewService(ledger repository.LedgerRepository) *Service {
	return &Service{ledger: ledger}
}

// ListAll 按条件返回记录，默认 id 升序
func (s *Service) ListAll(ctx context.Context, f Filter) ([]*entity.InvocationRecord, error) {
	ctx, span := tracer.Start(ctx, "query.ListAll")
	defer span.End()

	var (
		records []*entity.InvocationRecord
		err     error
	)
	if f == (Filter{}) {
		records, err = s.ledger.ListAll(ctx)
	} else {
		records, err = s.ledger.List(ctx, f)
	}
	if err != nil {
		tracer.RecordError(span, err)
		return nil, errors.Storage(err, "failed to read ledger")
	}
	return records, nil
}

// ListRecent 按 id 倒序返回记录
func (s *Service) ListRecent(ctx context.Context, f Filter) ([]*entity.InvocationRecord, error) {
	if f.Paginated() {
		f.Order = repository.SortOrderDesc
		return s.ListAll(ctx, f)
	}

	f.Order = repository.SortOrderAsc
	records, err := s.ListAll(ctx, f)
	if err != nil {
		return nil, err
	}
	slices.Reverse(records)
	return records, nil
}

// Page 分页查询
func (s *Service) Page(ctx context.Context, f Filter, p repository.Pagination) (*repository.PagedResult[*entity.InvocationRecord], error) {
	ctx, span := tracer.Start(ctx, "query.Page")
	defer span.End()

	f.Limit = p.Limit()
	f.Offset = p.Offset()
	if f.Order == "" {
		f.Order = repository.SortOrderDesc
	}

	total, err := s.ledger.Count(ctx, f)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, errors.Storage(err, "failed to count ledger")
	}
	records, err := s.ledger.List(ctx, f)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, errors.Storage(err, "failed to read ledger")
	}
	return repository.NewPagedResult(records, total, p), nil
}
