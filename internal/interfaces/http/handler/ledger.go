package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"llm-ledger-api/internal/application/query"
	"llm-ledger-api/internal/domain/repository"
	"llm-ledger-api/internal/interfaces/http/dto"
)

// LedgerHandler 账本查询处理器
type LedgerHandler struct {
	svc *query.Service
}

// NewLedgerHandler 创建账本查询处理器
func NewLedgerHandler(svc *query.Service) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// ListRequests 查询调用记录
// @Summary 调用记录列表
// @Description 默认按 id 升序返回全部记录，支持 model/provider/status/date_from/date_to/order/limit/offset
// @Tags Ledger
// @Produce json
// @Success 200 {array} dto.RecordResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/requests [get]
func (h *LedgerHandler) ListRequests(c *gin.Context) {
	filter, err := dto.BindLedgerFilter(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	records, err := h.svc.ListAll(c.Request.Context(), filter)
	if err != nil {
		dto.ErrorFromApp(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToRecordListResponse(records))
}

// ListRecent 最新调用记录
// @Summary 最新调用记录
// @Tags Ledger
// @Produce json
// @Success 200 {array} dto.RecordResponse
// @Router /api/requests/recent [get]
func (h *LedgerHandler) ListRecent(c *gin.Context) {
	filter, err := dto.BindLedgerFilter(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	records, err := h.svc.ListRecent(c.Request.Context(), filter)
	if err != nil {
		dto.ErrorFromApp(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToRecordListResponse(records))
}

// PageRequests 分页查询调用记录
// @Summary 调用记录分页
// @Tags Ledger
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.RecordResponse]
// @Router /api/requests/page [get]
func (h *LedgerHandler) PageRequests(c *gin.Context) {
	filter, err := dto.BindLedgerFilter(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	filter.Order = repository.ParseSortOrder(c.Query("order"), repository.SortOrderDesc)
	page := dto.BindPage(c)

	res, err := h.svc.Page(c.Request.Context(), filter, page)
	if err != nil {
		dto.ErrorFromApp(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToRecordListResponse(res.Items), dto.NewPageMeta(res.Page, res.PageSize, res.Total))
}
