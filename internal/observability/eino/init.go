// Package eino 为 Eino 组件注册全局可观测回调
package eino

import (
	"sync/atomic"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"

	"llm-ledger-api/internal/config"
)

var registered atomic.Bool

// Init 在开启追踪或指标时注册 ChatModel 全局回调，进程内只注册一次。
// 返回本次调用是否完成了注册。
func Init(cfg config.ObservabilityConfig) bool {
	if !cfg.Tracing.Enabled && !cfg.Metrics.Enabled {
		return false
	}
	if !registered.CompareAndSwap(false, true) {
		return false
	}

	handler := cbtemplate.NewHandlerHelper().
		ChatModel(newChatModelCallbackHandler()).
		Handler()
	einocallbacks.AppendGlobalHandlers(handler)
	return true
}
