package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"llm-ledger-api/internal/domain/service"
)

// statusCodePattern 匹配 OpenAI 兼容 SDK 错误信息中的 HTTP 状态码
var statusCodePattern = regexp.MustCompile(`status(?: code)?[:=]?\s*(\d{3})`)

// ClassifyError 将提供商原始错误归类为 ProviderError
func ClassifyError(provider, modelName string, err error) *service.ProviderError {
	if pe, ok := service.AsProviderError(err); ok {
		return pe
	}
	kind, retryable := classify(err)
	return &service.ProviderError{
		Provider:  provider,
		Model:     modelName,
		Kind:      kind,
		Retryable: retryable,
		Cause:     err,
	}
}

func classify(err error) (service.ProviderErrorKind, bool) {
	if err == nil {
		return service.ProviderErrorUnknown, false
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return service.ProviderErrorTimeout, true
	case errors.Is(err, context.Canceled):
		return service.ProviderErrorUnknown, false
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return service.ProviderErrorNetwork, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return service.ProviderErrorNetwork, true
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return service.ProviderErrorParse, false
	}

	msg := strings.ToLower(err.Error())
	if m := statusCodePattern.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			if kind, retryable, ok := classifyStatus(code); ok {
				return kind, retryable
			}
		}
	}

	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
		return service.ProviderErrorRateLimit, true
	case strings.Contains(msg, "model not found"), strings.Contains(msg, "does not exist"):
		return service.ProviderErrorNotFound, false
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid api key"):
		return service.ProviderErrorAuth, false
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"):
		return service.ProviderErrorNetwork, true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return service.ProviderErrorTimeout, true
	case strings.Contains(msg, "invalid character"), strings.Contains(msg, "cannot unmarshal"):
		return service.ProviderErrorParse, false
	}
	return service.ProviderErrorUnknown, false
}

func classifyStatus(code int) (service.ProviderErrorKind, bool, bool) {
	switch {
	case code == 401 || code == 403:
		return service.ProviderErrorAuth, false, true
	case code == 429:
		return service.ProviderErrorRateLimit, true, true
	case code == 404:
		return service.ProviderErrorNotFound, false, true
	case code == 408:
		return service.ProviderErrorTimeout, true, true
	case code == 400 || code == 422:
		return service.ProviderErrorBadRequest, false, true
	case code >= 500 && code <= 599:
		return service.ProviderErrorServer, true, true
	}
	return "", false, false
}
