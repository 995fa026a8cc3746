package dto

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"llm-ledger-api/internal/domain/repository"
)

func newQueryContext(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/requests?"+rawQuery, nil)
	return c
}

func TestBindLedgerFilter(t *testing.T) {
	c := newQueryContext("model=gemini-2.5-flash&provider=gemini&status=error&order=desc&limit=10&offset=5" +
		"&date_from=2025-01-02&date_to=2025-01-03")

	f, err := BindLedgerFilter(c)
	require.NoError(t, err)
	require.Equal(t, "gemini-2.5-flash", f.Model)
	require.Equal(t, "gemini", f.Provider)
	require.Equal(t, "error", f.Status)
	require.Equal(t, repository.SortOrderDesc, f.Order)
	require.Equal(t, 10, f.Limit)
	require.Equal(t, 5, f.Offset)
	require.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), *f.From)
	require.Equal(t, time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC), *f.To)
}

func TestBindLedgerFilterTimestamps(t *testing.T) {
	c := newQueryContext("date_from=2025-01-02T10:00:00%2B02:00&date_to=2025-01-02T12:00:00Z")

	f, err := BindLedgerFilter(c)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC), *f.From)
	require.Equal(t, time.Date(2025, 1, 2, 12, 0, 0, 1, time.UTC), *f.To)
	require.Equal(t, repository.SortOrderAsc, f.Order)
}

func TestBindLedgerFilterIgnoresInvalidDates(t *testing.T) {
	c := newQueryContext("date_from=yesterday&date_to=2025-13-40")

	f, err := BindLedgerFilter(c)
	require.NoError(t, err)
	require.Nil(t, f.From)
	require.Nil(t, f.To)
}

func TestBindLedgerFilterRejectsInvalidPaging(t *testing.T) {
	for _, q := range []string{"limit=abc", "limit=-1", "offset=1.5"} {
		_, err := BindLedgerFilter(newQueryContext(q))
		require.Error(t, err, q)
	}
}

func TestFormatTimestampUsesZ(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	ts := time.Date(2025, 6, 1, 20, 30, 0, 500, loc)
	require.Equal(t, "2025-06-01T12:30:00.0000005Z", FormatTimestamp(ts))
}
