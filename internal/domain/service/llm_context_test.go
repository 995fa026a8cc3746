package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProviderModelContext(t *testing.T) {
	ctx := WithProviderModel(context.Background(), " gemini ", "gemini-2.5-flash")
	require.Equal(t, "gemini", ProviderFromContext(ctx))
	require.Equal(t, "gemini-2.5-flash", ModelFromContext(ctx))

	require.Equal(t, "unknown", ProviderFromContext(context.Background()))
	require.Equal(t, "unknown", ModelFromContext(WithModel(context.Background(), "  ")))
}

func TestAsProviderError(t *testing.T) {
	cause := errors.New("status code: 503")
	pe := &ProviderError{Provider: "gemini", Model: "m", Kind: ProviderErrorServer, Retryable: true, Cause: cause}
	wrapped := fmt.Errorf("attempt 1: %w", pe)

	got, ok := AsProviderError(wrapped)
	require.True(t, ok)
	require.Same(t, pe, got)
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "provider gemini (m): server: status code: 503", pe.Error())

	_, ok = AsProviderError(cause)
	require.False(t, ok)
}
