// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"llm-ledger-api/internal/domain/repository"
)

const dateOnlyLayout = "2006-01-02"

// BindPage 从 Gin Context 绑定分页参数
func BindPage(c *gin.Context) repository.Pagination {
	return repository.NewPagination(
		parseIntWithDefault(c.Query("page"), 1),
		parseIntWithDefault(c.Query("page_size"), 20),
	)
}

// parseIntWithDefault 解析整数，失败时返回默认值
func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// BindLedgerFilter 从查询参数构造账本过滤条件
// 无法解析的日期被忽略；limit/offset 非法时返回错误。
func BindLedgerFilter(c *gin.Context) (repository.LedgerFilter, error) {
	f := repository.LedgerFilter{
		Model:    strings.TrimSpace(c.Query("model")),
		Provider: strings.TrimSpace(c.Query("provider")),
		Status:   strings.TrimSpace(c.Query("status")),
		Order:    repository.ParseSortOrder(c.Query("order"), repository.SortOrderAsc),
	}

	if from, ok := parseDateFrom(c.Query("date_from")); ok {
		f.From = &from
	}
	if to, ok := parseDateTo(c.Query("date_to")); ok {
		f.To = &to
	}

	var err error
	if f.Limit, err = parseNonNegative("limit", c.Query("limit")); err != nil {
		return f, err
	}
	if f.Offset, err = parseNonNegative("offset", c.Query("offset")); err != nil {
		return f, err
	}
	return f, nil
}

func parseNonNegative(name, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func parseDateFrom(raw string) (time.Time, bool) {
	t, _, ok := parseDate(raw)
	return t, ok
}

// parseDateTo 返回不包含的上界：纯日期覆盖当天，时间戳包含该时刻
func parseDateTo(raw string) (time.Time, bool) {
	t, dateOnly, ok := parseDate(raw)
	if !ok {
		return time.Time{}, false
	}
	if dateOnly {
		return t.AddDate(0, 0, 1), true
	}
	return t.Add(time.Nanosecond), true
}

func parseDate(raw string) (time.Time, bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), false, true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, time.UTC); err == nil {
		return t, false, true
	}
	if t, err := time.ParseInLocation(dateOnlyLayout, raw, time.UTC); err == nil {
		return t, true, true
	}
	return time.Time{}, false, false
}
