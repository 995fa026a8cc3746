// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"llm-ledger-api/internal/application/invocation"
	"llm-ledger-api/internal/interfaces/http/dto"
	"llm-ledger-api/pkg/logger"
)

// InvocationHandler LLM 调用处理器
type InvocationHandler struct {
	svc *invocation.Service
}

// NewInvocationHandler 创建调用处理器
func NewInvocationHandler(svc *invocation.Service) *InvocationHandler {
	return &InvocationHandler{svc: svc}
}

// Invoke 调用 LLM 并记录账本
// @Summary 调用 LLM
// @Description 调用指定提供商的模型，无论成功失败均写入一条账本记录
// @Tags LLM
// @Accept json
// @Produce json
// @Param body body dto.InvokeRequest true "调用请求"
// @Success 200 {object} dto.InvokeResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Failure 504 {object} dto.ErrorResponse
// @Router /api/llm/invoke [post]
func (h *InvocationHandler) Invoke(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}

	res, err := h.svc.Invoke(ctx, req.ToInput())
	if err != nil {
		logger.Debug(ctx, "invoke request failed", "error", err.Error())
		dto.ErrorFromApp(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToInvokeResponse(res))
}
