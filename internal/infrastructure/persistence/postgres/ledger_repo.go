package postgres

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"llm-ledger-api/internal/domain/entity"
	"llm-ledger-api/internal/domain/repository"
	"llm-ledger-api/pkg/tracer"
)

// ledgerAppendLockKey 账本追加的 advisory lock 键
const ledgerAppendLockKey int64 = 0x6c6c6d6c6564 // "llmled"

// LedgerRepository 调用账本仓储实现
type LedgerRepository struct {
	client *Client
	tx     *TxManager
	now    func() time.Time

	// 进程内串行化追加，保证 id 与 created_at 同序；容量为 1
	appendLock chan struct{}
}

// NewLedgerRepository 创建账本仓储
func NewLedgerRepository(client *Client) *LedgerRepository {
	return &LedgerRepository{
		client: client,
		tx:     NewTxManager(client),
		now:    func() time.Time { return time.Now().UTC() },

		appendLock: make(chan struct{}, 1),
	}
}

// Append 追加记录
func (r *LedgerRepository) Append(ctx context.Context, rec *entity.InvocationRecord) (uint64, error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.Append")
	defer span.End()

	// 等锁受 ctx 约束
	select {
	case r.appendLock <- struct{}{}:
	case <-ctx.Done():
		err := fmt.Errorf("%w: wait append lock: %w", repository.ErrStorageUnavailable, ctx.Err())
		tracer.RecordError(span, err)
		return 0, err
	}
	defer func() { <-r.appendLock }()

	row := rec.Clone()
	row.ID = 0
	if row.CreatedAt.IsZero() {
		row.CreatedAt = r.now()
	}
	row.CreatedAt = row.CreatedAt.UTC()

	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		db := getDB(ctx, r.client.db)

		if r.client.IsPostgres() {
			if err := db.Exec("SELECT pg_advisory_xact_lock(?)", ledgerAppendLockKey).Error; err != nil {
				return fmt.Errorf("acquire append lock: %w", err)
			}
		}

		var last []entity.InvocationRecord
		if err := db.Model(&entity.InvocationRecord{}).
			Select("created_at").
			Order("id DESC").
			Limit(1).
			Find(&last).Error; err != nil {
			return fmt.Errorf("load last record: %w", err)
		}
		if len(last) > 0 {
			prev := last[0].CreatedAt.UTC()
			if row.CreatedAt.Before(prev) {
				row.CreatedAt = prev
			}
		}

		if err := db.Create(row).Error; err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		return nil
	})
	if err != nil {
		tracer.RecordError(span, err)
		return 0, fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}

	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	span.SetAttributes(attribute.Int64("ledger.record_id", int64(row.ID)))
	return row.ID, nil
}

// ListAll 按 id 升序返回全部记录
func (r *LedgerRepository) ListAll(ctx context.Context) ([]*entity.InvocationRecord, error) {
	return r.List(ctx, repository.LedgerFilter{})
}

// List 按条件查询
func (r *LedgerRepository) List(ctx context.Context, filter repository.LedgerFilter) ([]*entity.InvocationRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.List")
	defer span.End()

	order := "id ASC"
	if filter.Order == repository.SortOrderDesc {
		order = "id DESC"
	}

	query := applyLedgerFilter(getDB(ctx, r.client.db).Model(&entity.InvocationRecord{}), filter).Order(order)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []*entity.InvocationRecord
	if err := query.Find(&records).Error; err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("%w: list invocation records: %w", repository.ErrStorageUnavailable, err)
	}

	for _, rec := range records {
		rec.CreatedAt = rec.CreatedAt.UTC()
	}
	span.SetAttributes(attribute.Int("ledger.result_count", len(records)))
	return records, nil
}

// Count 统计满足条件的记录数
func (r *LedgerRepository) Count(ctx context.Context, filter repository.LedgerFilter) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.Count")
	defer span.End()

	var total int64
	if err := applyLedgerFilter(getDB(ctx, r.client.db).Model(&entity.InvocationRecord{}), filter).
		Count(&total).Error; err != nil {
		tracer.RecordError(span, err)
		return 0, fmt.Errorf("%w: count invocation records: %w", repository.ErrStorageUnavailable, err)
	}
	return total, nil
}

func applyLedgerFilter(db *gorm.DB, filter repository.LedgerFilter) *gorm.DB {
	if filter.Model != "" {
		db = db.Where("model = ?", filter.Model)
	}
	if filter.Provider != "" {
		db = db.Where("provider = ?", filter.Provider)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		db = db.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		db = db.Where("created_at < ?", filter.To.UTC())
	}
	return db
}
