package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"llm-ledger-api/internal/domain/entity"
)

func TestNewPagedResult(t *testing.T) {
	p := NewPagination(2, 3)
	require.Equal(t, 3, p.Offset())

	res := NewPagedResult[int](nil, 7, p)
	require.Equal(t, 3, res.TotalPages)
	require.NotNil(t, res.Items)
	require.Empty(t, res.Items)

	require.Equal(t, 100, NewPagination(0, 1000).PageSize)
}

func TestParseSortOrder(t *testing.T) {
	require.Equal(t, SortOrderDesc, ParseSortOrder(" desc ", SortOrderAsc))
	require.Equal(t, SortOrderAsc, ParseSortOrder("ASC", SortOrderDesc))
	require.Equal(t, SortOrderAsc, ParseSortOrder("sideways", SortOrderAsc))
}

func TestLedgerFilterMatches(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	next := day.Add(24 * time.Hour)
	rec := &entity.InvocationRecord{
		Provider:  "gemini",
		Model:     "gemini-2.5-flash",
		Status:    entity.InvocationStatusOK,
		CreatedAt: day.Add(time.Hour),
	}

	require.True(t, LedgerFilter{}.Matches(rec))
	require.True(t, LedgerFilter{Model: "gemini-2.5-flash", From: &day, To: &next}.Matches(rec))
	require.False(t, LedgerFilter{Provider: "openai"}.Matches(rec))
	require.False(t, LedgerFilter{Status: entity.InvocationStatusError}.Matches(rec))

	// To 为开区间
	end := rec.CreatedAt
	require.False(t, LedgerFilter{To: &end}.Matches(rec))
	require.True(t, LedgerFilter{From: &end}.Matches(rec))
}
