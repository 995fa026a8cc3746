// Package invocation 实现 LLM 调用与账本落库
package invocation

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"llm-ledger-api/internal/config"
	"llm-ledger-api/internal/domain/entity"
	"llm-ledger-api/internal/domain/repository"
	"llm-ledger-api/internal/domain/service"
	"llm-ledger-api/pkg/errors"
	"llm-ledger-api/pkg/logger"
	"llm-ledger-api/pkg/metrics"
	"llm-ledger-api/pkg/tracer"
)

// Input 调用请求
type Input struct {
	Provider string
	Model    string
	Prompt   string
}

// Result 成功调用的结果
type Result struct {
	ID        uint64
	Provider  string
	Model     string
	Output    string
	LatencyMs float64
	Attempts  int
	CreatedAt time.Time
}

// Service 调用服务
// 每次 Invoke 到达提供商后恰好写入一条账本记录。
type Service struct {
	providers service.ProviderResolver
	ledger    repository.LedgerRepository
	publisher service.InvocationEventPublisher

	timeout      time.Duration
	writeTimeout time.Duration
	retry        RetryPolicy
	clock   func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewService 创建调用服务，publisher 可为 nil
func NewService(
	cfg *config.Config,
	providers service.ProviderResolver,
	ledger repository.LedgerRepository,
	publisher service.InvocationEventPublisher,
) *Service {
	timeout := cfg.Invocation.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	writeTimeout := cfg.Database.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Service{
		providers: providers,
		ledger:    ledger,
		publisher: publisher,
		timeout:      timeout,
		writeTimeout: writeTimeout,
		retry:        RetryPolicyFromConfig(cfg.Invocation.Retry),
		clock:        time.Now,
		sleep:        sleepContext,
	}
}

// Invoke 调用提供商并记录结果
func (s *Service) Invoke(ctx context.Context, in Input) (*Result, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, errors.Validation("prompt must not be empty")
	}
	if !entity.ValidText(prompt) {
		return nil, errors.Validation("prompt must be valid UTF-8 without NUL characters")
	}

	providerName := strings.TrimSpace(in.Provider)
	if providerName == "" {
		providerName = s.providers.DefaultProvider()
	}

	modelName := strings.TrimSpace(in.Model)
	if modelName == "" {
		modelName = s.providers.DefaultModel(providerName)
	}
	if modelName == "" {
		return nil, errors.Validation("model must not be empty")
	}
	if !entity.ValidText(modelName) {
		return nil, errors.Validation("model must be valid UTF-8 without NUL characters")
	}
	if utf8.RuneCountInString(modelName) > entity.MaxModelLength {
		return nil, errors.Validation(fmt.Sprintf("model must be at most %d characters", entity.MaxModelLength))
	}

	provider, err := s.providers.Resolve(ctx, providerName)
	if err != nil {
		if stderrors.Is(err, service.ErrProviderNotFound) {
			return nil, errors.New(errors.CodeProviderNotFound, fmt.Sprintf("unknown provider %q", providerName))
		}
		return nil, errors.Wrap(err, errors.CodeLLMProviderError, "llm provider unavailable")
	}

	ctx = logger.WithContext(ctx, logger.ProviderKey, providerName)
	ctx = logger.WithContext(ctx, logger.ModelKey, modelName)
	ctx, span := tracer.Start(ctx, "invocation.Invoke", trace.WithAttributes(
		attribute.String("llm.provider", providerName),
		attribute.String("llm.model", modelName),
	))
	defer span.End()

	var (
		output    string
		latencyMs float64
		callErr   *service.ProviderError
		attempts  int
	)
	for attempts = 1; ; attempts++ {
		output, latencyMs, callErr = s.attempt(ctx, provider, providerName, modelName, prompt)

		status := entity.InvocationStatusOK
		if callErr != nil {
			status = entity.InvocationStatusError
		}
		metrics.LLMCallTotal.WithLabelValues(providerName, modelName, status).Inc()
		metrics.LLMCallDuration.WithLabelValues(providerName, modelName).Observe(latencyMs / 1000)

		if !s.retry.shouldRetry(callErr, attempts) || ctx.Err() != nil {
			break
		}

		backoff := s.retry.Backoff.CalculateBackoff(attempts - 1)
		metrics.LLMRetryTotal.WithLabelValues(providerName, modelName).Inc()
		logger.Warn(ctx, "llm attempt failed, retrying",
			"attempt", attempts,
			"kind", string(callErr.Kind),
			"backoff_ms", backoff.Milliseconds(),
			"error", callErr.Error(),
		)
		if err := s.sleep(ctx, backoff); err != nil {
			break
		}
	}
	span.SetAttributes(attribute.Int("llm.attempts", attempts))

	rec := &entity.InvocationRecord{
		Provider:  providerName,
		Model:     modelName,
		Prompt:    prompt,
		Output:    entity.SanitizeText(output),
		LatencyMs: latencyMs,
		Status:    entity.InvocationStatusOK,
		Attempts:  attempts,
	}
	if callErr != nil {
		rec.Output = ""
		rec.Status = entity.InvocationStatusError
		rec.Error = entity.SanitizeText(callErr.Error())
	}

	// 调用方断开不影响落库，写入本身有独立上限
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancelPersist()
	id, err := s.append(persistCtx, rec)
	if err != nil {
		tracer.RecordError(span, err)
		logger.Error(ctx, "failed to persist invocation record", err,
			"succeeded", rec.Succeeded(),
			"latency_ms", rec.LatencyMs,
		)
		return nil, errors.Storage(err, "ledger storage unavailable")
	}
	span.SetAttributes(attribute.Int64("ledger.record_id", int64(id)))
	pubCtx, cancelPub := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancelPub()
	s.publish(pubCtx, rec)

	if callErr != nil {
		tracer.RecordError(span, callErr)
		logger.Warn(ctx, "llm invocation failed",
			"record_id", id,
			"attempts", attempts,
			"kind", string(callErr.Kind),
			"error", callErr.Error(),
		)
		code := errors.CodeInvocationFailed
		if callErr.Kind == service.ProviderErrorTimeout {
			code = errors.CodeLLMTimeout
		}
		return nil, errors.Wrap(callErr, code, "llm invocation failed").
			WithDetail(string(callErr.Kind)).
			WithMeta("record_id", id)
	}

	logger.Info(ctx, "llm invocation recorded",
		"record_id", id,
		"attempts", attempts,
		"latency_ms", latencyMs,
	)
	return &Result{
		ID:        id,
		Provider:  providerName,
		Model:     modelName,
		Output:    rec.Output,
		LatencyMs: rec.LatencyMs,
		Attempts:  attempts,
		CreatedAt: rec.CreatedAt,
	}, nil
}

type attemptOutcome struct {
	output string
	err    error
}

// attempt 在独立 goroutine 中调用提供商，超时后不再等待其返回
func (s *Service) attempt(ctx context.Context, provider service.LLMProvider, providerName, modelName, prompt string) (string, float64, *service.ProviderError) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan attemptOutcome, 1)
	start := s.clock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptOutcome{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		out, err := provider.Generate(callCtx, modelName, prompt)
		done <- attemptOutcome{output: out, err: err}
	}()

	var res attemptOutcome
	select {
	case res = <-done:
	case <-callCtx.Done():
		select {
		case res = <-done:
		default:
			res.err = callCtx.Err()
		}
	}
	latencyMs := float64(s.clock().Sub(start)) / float64(time.Millisecond)

	if res.err != nil {
		return "", latencyMs, toProviderError(ctx, providerName, modelName, res.err)
	}
	return res.output, latencyMs, nil
}

// toProviderError 将适配器返回的错误统一为 ProviderError
// 调用方自身的 ctx 结束时，无论适配器如何分类，都不是超时且不可重试。
func toProviderError(parent context.Context, providerName, modelName string, err error) *service.ProviderError {
	pe, ok := service.AsProviderError(err)
	if !ok {
		pe = &service.ProviderError{
			Provider: providerName,
			Model:    modelName,
			Kind:     service.ProviderErrorUnknown,
			Cause:    err,
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			pe.Kind = service.ProviderErrorTimeout
			pe.Retryable = true
		}
	}

	if parent.Err() != nil && (pe.Kind == service.ProviderErrorTimeout ||
		stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled)) {
		cp := *pe
		cp.Kind = service.ProviderErrorUnknown
		cp.Retryable = false
		if cp.Cause == nil {
			cp.Cause = parent.Err()
		}
		return &cp
	}
	return pe
}

func (s *Service) append(ctx context.Context, rec *entity.InvocationRecord) (uint64, error) {
	start := time.Now()
	id, err := s.ledger.Append(ctx, rec)
	metrics.LedgerAppendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LedgerAppendTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	metrics.LedgerAppendTotal.WithLabelValues("ok").Inc()
	rec.ID = id
	return id, nil
}

// publish 发布落库事件，失败只记录日志
func (s *Service) publish(ctx context.Context, rec *entity.InvocationRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishInvocationRecorded(ctx, entity.NewInvocationRecordedEvent(rec)); err != nil {
		logger.Warn(ctx, "failed to publish invocation event", "record_id", rec.ID, "error", err.Error())
	}
}
