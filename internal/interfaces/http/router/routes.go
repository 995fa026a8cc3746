// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes 注册业务路由
func RegisterAPIRoutes(api *gin.RouterGroup, h *RouterHandlers) {
	invoke := []gin.HandlerFunc{h.Invocation.Invoke}
	if h.RateLimit != nil {
		invoke = append([]gin.HandlerFunc{h.RateLimit}, invoke...)
	}
	api.POST("/llm/invoke", invoke...)

	requests := api.Group("/requests")
	{
		requests.GET("", h.Ledger.ListRequests)
		requests.GET("/recent", h.Ledger.ListRecent)
		requests.GET("/page", h.Ledger.PageRequests)
	}
}
