package invocation

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"llm-ledger-api/internal/config"
	"llm-ledger-api/internal/domain/entity"
	"llm-ledger-api/internal/domain/repository"
	"llm-ledger-api/internal/domain/service"
	"llm-ledger-api/internal/infrastructure/persistence/memory"
	"llm-ledger-api/pkg/errors"
)

// stubProvider 按顺序返回预设结果，超出后重复最后一个
type stubProvider struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, call int, model, prompt string) (string, error)
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	call := int(p.calls.Add(1))
	return p.fn(ctx, call, model, prompt)
}

type stubResolver struct {
	providers    map[string]service.LLMProvider
	defaultName  string
	defaultModel string
}

func (r *stubResolver) Resolve(_ context.Context, name string) (service.LLMProvider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, service.ErrProviderNotFound
	}
	return p, nil
}

func (r *stubResolver) DefaultModel(string) string { return r.defaultModel }
func (r *stubResolver) DefaultProvider() string    { return r.defaultName }

type failingLedger struct {
	repository.LedgerRepository
	appends atomic.Int32
}

func (l *failingLedger) Append(context.Context, *entity.InvocationRecord) (uint64, error) {
	l.appends.Add(1)
	return 0, repository.ErrStorageUnavailable
}

// blockingLedger 模拟卡住的数据库，直到 ctx 结束
type blockingLedger struct {
	repository.LedgerRepository
	hadDeadline atomic.Bool
}

func (l *blockingLedger) Append(ctx context.Context, _ *entity.InvocationRecord) (uint64, error) {
	_, ok := ctx.Deadline()
	l.hadDeadline.Store(ok)
	<-ctx.Done()
	return 0, fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, ctx.Err())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*entity.InvocationRecordedEvent
	err    error
}

func (p *recordingPublisher) PublishInvocationRecorded(_ context.Context, e *entity.InvocationRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func testConfig(timeout time.Duration, maxAttempts int) *config.Config {
	return &config.Config{
		Invocation: config.InvocationConfig{
			Timeout: timeout,
			Retry: config.RetryConfig{
				MaxAttempts: maxAttempts,
				Backoff:     config.BackoffConfig{Initial: time.Millisecond, Max: 10 * time.Millisecond, Multiplier: 2},
			},
		},
	}
}

func newTestService(t *testing.T, p *stubProvider, ledger repository.LedgerRepository, cfg *config.Config) *Service {
	t.Helper()
	resolver := &stubResolver{
		providers:    map[string]service.LLMProvider{p.name: p},
		defaultName:  p.name,
		defaultModel: "gemini-2.5-flash-lite",
	}
	s := NewService(cfg, resolver, ledger, nil)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func answer(out string) func(context.Context, int, string, string) (string, error) {
	return func(context.Context, int, string, string) (string, error) { return out, nil }
}

func TestInvokeSuccessAppendsOneRecord(t *testing.T) {
	ledger := memory.NewLedgerStore()
	p := &stubProvider{name: "gemini", fn: answer("42")}
	s := newTestService(t, p, ledger, testConfig(time.Second, 1))
	ctx := context.Background()

	prior, err := ledger.Append(ctx, &entity.InvocationRecord{Model: "m", Prompt: "seed", Output: "x", Status: entity.InvocationStatusOK})
	require.NoError(t, err)

	res, err := s.Invoke(ctx, Input{Model: "gemini-2.5-flash", Prompt: "  What is 6*7?  "})
	require.NoError(t, err)
	require.Equal(t, "42", res.Output)
	require.Equal(t, "gemini", res.Provider)
	require.Equal(t, 1, res.Attempts)
	require.GreaterOrEqual(t, res.LatencyMs, 0.0)
	require.Greater(t, res.ID, prior)

	records, err := ledger.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	last := records[1]
	require.Equal(t, res.ID, last.ID)
	require.Equal(t, "gemini-2.5-flash", last.Model)
	require.Equal(t, "What is 6*7?", last.Prompt)
	require.Equal(t, "42", last.Output)
	require.Equal(t, entity.InvocationStatusOK, last.Status)
	require.Equal(t, time.UTC, last.CreatedAt.Location())
	require.True(t, res.CreatedAt.Equal(last.CreatedAt))
}

func TestInvokeMeasuresLatencyWithClock(t *testing.T) {
	ledger := memory.NewLedgerStore()
	s := newTestService(t, &stubProvider{name: "gemini", fn: answer("o")}, ledger, testConfig(time.Second, 1))

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ticks atomic.Int32
	s.clock = func() time.Time {
		if ticks.Add(1) == 1 {
			return base
		}
		return base.Add(12500 * time.Microsecond)
	}

	res, err := s.Invoke(context.Background(), Input{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	require.InDelta(t, 12.5, res.LatencyMs, 1e-9)
}

func TestInvokeDefaultsModel(t *testing.T) {
	ledger := memory.NewLedgerStore()
	var gotModel string
	p := &stubProvider{name: "gemini", fn: func(_ context.Context, _ int, model, _ string) (string, error) {
		gotModel = model
		return "ok", nil
	}}
	s := newTestService(t, p, ledger, testConfig(time.Second, 1))

	res, err := s.Invoke(context.Background(), Input{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "gemini-2.5-flash-lite", res.Model)
	require.Equal(t, "gemini-2.5-flash-lite", gotModel)
}

func TestInvokeValidation(t *testing.T) {
	ledger := memory.NewLedgerStore()
	p := &stubProvider{name: "gemini", fn: answer("never")}
	s := newTestService(t, p, ledger, testConfig(time.Second, 1))
	ctx := context.Background()

	cases := []struct {
		name string
		in   Input
		code errors.ErrorCode
	}{
		{"empty prompt", Input{Prompt: ""}, errors.CodeInvalidParam},
		{"blank prompt", Input{Prompt: " \n\t "}, errors.CodeInvalidParam},
		{"model too long", Input{Prompt: "p", Model: strings.Repeat("m", entity.MaxModelLength+1)}, errors.CodeInvalidParam},
		{"nul in prompt", Input{Prompt: "\x00x"}, errors.CodeInvalidParam},
		{"nul in model", Input{Prompt: "p", Model: "m\x00"}, errors.CodeInvalidParam},
		{"unknown provider", Input{Prompt: "p", Provider: "anthropic"}, errors.CodeProviderNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Invoke(ctx, tc.in)
			require.True(t, errors.HasCode(err, tc.code), "got %v", err)
			require.Equal(t, http.StatusBadRequest, errors.AsAppError(err).HTTPStatus)
		})
	}

	require.Zero(t, p.calls.Load())
	records, err := ledger.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestInvokeProviderFailureIsRecorded(t *testing.T) {
	ledger := memory.NewLedgerStore()
	p := &stubProvider{name: "gemini", fn: func(context.Context, int, string, string) (string, error) {
		return "", &service.ProviderError{Provider: "gemini", Model: "m", Kind: service.ProviderErrorAuth, Cause: stderrors.New("invalid api key")}
	}}
	s := newTestService(t, p, ledger, testConfig(time.Second, 3))
	ctx := context.Background()

	_, err := s.Invoke(ctx, Input{Model: "m", Prompt: "p"})
	require.True(t, errors.HasCode(err, errors.CodeInvocationFailed))
	appErr := errors.AsAppError(err)
	require.Equal(t, http.StatusBadGateway, appErr.HTTPStatus)
	require.Equal(t, "auth", appErr.Detail)

	// 不可重试错误只调用一次
	require.EqualValues(t, 1, p.calls.Load())

	records, err := ledger.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Empty(t, records[0].Output)
	require.Equal(t, entity.InvocationStatusError, records[0].Status)
	require.Contains(t, records[0].Error, "invalid api key")
	require.Equal(t, records[0].ID, appErr.Meta["record_id"])
}

func TestInvokeTimeoutRecordsFailure(t *testing.T) {
	ledger := memory.NewLedgerStore()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// 忽略取消信号的提供商
	p := &stubProvider{name: "gemini", fn: func(context.Context, int, string, string) (string, error) {
		<-release
		return "late", nil
	}}
	timeout := 50 * time.Millisecond
	s := newTestService(t, p, ledger, testConfig(timeout, 1))

	start := time.Now()
	_, err := s.Invoke(context.Background(), Input{Model: "m", Prompt: "slow"})
	elapsed := time.Since(start)

	require.True(t, errors.HasCode(err, errors.CodeLLMTimeout))
	require.Equal(t, http.StatusGatewayTimeout, errors.AsAppError(err).HTTPStatus)
	require.Less(t, elapsed, 2*time.Second)

	records, err := ledger.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Empty(t, records[0].Output)
	require.GreaterOrEqual(t, records[0].LatencyMs, float64(timeout.Milliseconds()))
	require.Less(t, records[0].LatencyMs, 1000.0)
}

func TestInvokeRetriesTransientFailure(t *testing.T) {
	ledger := memory.NewLedgerStore()
	p := &stubProvider{name: "gemini", fn: func(_ context.Context, call int, _, _ string) (string, error) {
		if call == 1 {
			return "", &service.ProviderError{Kind: service.ProviderErrorServer, Retryable: true, Cause: stderrors.New("503")}
		}
		return "recovered", nil
	}}
	s := newTestService(t, p, ledger, testConfig(time.Second, 2))

	var slept []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	res, err := s.Invoke(context.Background(), Input{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, "recovered", res.Output)
	require.Equal(t, 2, res.Attempts)
	require.Equal(t, []time.Duration{time.Millisecond}, slept)

	records, err := ledger.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 2, records[0].Attempts)
	require.Equal(t, entity.InvocationStatusOK, records[0].Status)
}

func TestInvokeRetryBudgetExhausted(t *testing.T) {
	ledger := memory.NewLedgerStore()
	p := &stubProvider{name: "gemini", fn: func(context.Context, int, string, string) (string, error) {
		return "", &service.ProviderError{Kind: service.ProviderErrorRateLimit, Retryable: true}
	}}
	s := newTestService(t, p, ledger, testConfig(time.Second, 3))

	_, err := s.Invoke(context.Background(), Input{Model: "m", Prompt: "p"})
	require.True(t, errors.HasCode(err, errors.CodeInvocationFailed))
	require.EqualValues(t, 3, p.calls.Load())

	records, err := ledger.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 3, records[0].Attempts)
}

func TestInvokeStorageFailure(t *testing.T) {
	ledger := &failingLedger{}
	p := &stubProvider{name: "gemini", fn: answer("ok")}
	s := newTestService(t, p, ledger, testConfig(time.Second, 1))

	res, err := s.Invoke(context.Background(), Input{Model: "m", Prompt: "p"})
	require.Nil(t, res)
	require.True(t, errors.HasCode(err, errors.CodeStorageError))
	require.Equal(t, http.StatusServiceUnavailable, errors.AsAppError(err).HTTPStatus)
	require.ErrorIs(t, err, repository.ErrStorageUnavailable)
	require.EqualValues(t, 1, ledger.appends.Load())
}

func TestInvokeRecordsWhenCallerCancels(t *testing.T) {
	ledger := memory.NewLedgerStore()
	ctx, cancel := context.WithCancel(context.Background())
	p := &stubProvider{name: "gemini", fn: func(context.Context, int, string, string) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	s := newTestService(t, p, ledger, testConfig(time.Second, 3))

	_, err := s.Invoke(ctx, Input{Model: "m", Prompt: "p"})
	require.True(t, errors.HasCode(err, errors.CodeInvocationFailed))
	require.EqualValues(t, 1, p.calls.Load())

	records, err := ledger.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestInvokeConcurrent(t *testing.T) {
	ledger := memory.NewLedgerStore()
	p := &stubProvider{name: "gemini", fn: func(_ context.Context, _ int, _, prompt string) (string, error) {
		time.Sleep(time.Millisecond)
		return "re: " + prompt, nil
	}}
	s := newTestService(t, p, ledger, testConfig(time.Second, 1))

	const n = 50
	ids := make([]uint64, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := s.Invoke(context.Background(), Input{Model: "m", Prompt: "p"})
			if err != nil {
				return err
			}
			ids[i] = res.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[uint64]struct{}, n)
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	require.Len(t, seen, n)

	records, err := ledger.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, n)
}

func TestInvokePublishesEvent(t *testing.T) {
	ledger := memory.NewLedgerStore()
	p := &stubProvider{name: "gemini", fn: answer("ok")}
	s := newTestService(t, p, ledger, testConfig(time.Second, 1))
	pub := &recordingPublisher{err: stderrors.New("redis down")}
	s.publisher = pub

	res, err := s.Invoke(context.Background(), Input{Model: "m", Prompt: "p"})
	require.NoError(t, err, "publish failures must not fail the invocation")

	require.Len(t, pub.events, 1)
	require.Equal(t, res.ID, pub.events[0].RecordID)
	require.Equal(t, entity.InvocationStatusOK, pub.events[0].Status)
}

func TestInvokeRecoversProviderPanic(t *testing.T) {
	ledger := memory.NewLedgerStore()
	p := &stubProvider{name: "gemini", fn: func(context.Context, int, string, string) (string, error) {
		panic("boom")
	}}
	s := newTestService(t, p, ledger, testConfig(time.Second, 1))

	_, err := s.Invoke(context.Background(), Input{Model: "m", Prompt: "p"})
	require.True(t, errors.HasCode(err, errors.CodeInvocationFailed))

	records, err := ledger.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Contains(t, records[0].Error, "provider panic")
}

func TestInvokeBoundsHungLedgerWrite(t *testing.T) {
	ledger := &blockingLedger{}
	p := &stubProvider{name: "gemini", fn: answer("ok")}
	cfg := testConfig(50*time.Millisecond, 1)
	cfg.Database.WriteTimeout = 50 * time.Millisecond
	s := newTestService(t, p, ledger, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := s.Invoke(ctx, Input{Model: "m", Prompt: "p"})
	require.Nil(t, res)
	require.True(t, errors.HasCode(err, errors.CodeStorageError))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, ledger.hadDeadline.Load())
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestInvokeSanitizesProviderText(t *testing.T) {
	ledger := memory.NewLedgerStore()
	p := &stubProvider{name: "gemini", fn: func(_ context.Context, call int, _, _ string) (string, error) {
		if call == 1 {
			return "4\x002", nil
		}
		return "", &service.ProviderError{Provider: "gemini", Model: "m", Kind: service.ProviderErrorBadRequest, Cause: stderrors.New("bad\x00input")}
	}}
	s := newTestService(t, p, ledger, testConfig(time.Second, 1))
	ctx := context.Background()

	res, err := s.Invoke(ctx, Input{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, "42", res.Output)

	_, err = s.Invoke(ctx, Input{Model: "m", Prompt: "p"})
	require.True(t, errors.HasCode(err, errors.CodeInvocationFailed))

	records, err := ledger.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "42", records[0].Output)
	require.True(t, entity.ValidText(records[1].Error))
	require.Contains(t, records[1].Error, "badinput")
}

func TestInvokeCallerDeadlineIsNotProviderTimeout(t *testing.T) {
	ledger := memory.NewLedgerStore()
	// 适配器自行把 ctx 超时分类为可重试的 timeout
	p := &stubProvider{name: "gemini", fn: func(ctx context.Context, _ int, model, _ string) (string, error) {
		<-ctx.Done()
		return "", &service.ProviderError{Provider: "gemini", Model: model, Kind: service.ProviderErrorTimeout, Retryable: true, Cause: ctx.Err()}
	}}
	s := newTestService(t, p, ledger, testConfig(time.Second, 3))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := s.Invoke(ctx, Input{Model: "m", Prompt: "p"})
	require.True(t, errors.HasCode(err, errors.CodeInvocationFailed), "got %v", err)
	require.Equal(t, http.StatusBadGateway, errors.AsAppError(err).HTTPStatus)
	require.EqualValues(t, 1, p.calls.Load())

	records, err := ledger.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, records[0].Attempts)
}
