package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dcapal/dcapal-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_UnwrapsDomainError(t *testing.T) {
	err := domain.NewError(domain.KindNotFound, "mds.GetMarket", "market not found", domain.ErrMarketNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestKindOf_DefaultsToFatalForUnkindedError(t *testing.T) {
	assert.Equal(t, domain.KindFatal, domain.KindOf(errors.New("boom")))
}

func TestIs_MatchesWrappedKind(t *testing.T) {
	err := domain.NewError(domain.KindTransient, "provider.OHLC", "upstream timeout", nil)
	wrapped := fmt.Errorf("wrapping: %w", err)
	assert.True(t, domain.Is(wrapped, domain.KindTransient), "Is() should see through fmt.Errorf wrapping")
	assert.False(t, domain.Is(wrapped, domain.KindFatal), "Is() should not match the wrong kind")
}

func TestError_UnwrapExposesCause(t *testing.T) {
	err := domain.NewError(domain.KindBadInput, "rebalancer.Validate", "invalid input", domain.ErrBadProblemInput)
	require.ErrorIs(t, err, domain.ErrBadProblemInput)
}

func TestError_ErrorStringIncludesCause(t *testing.T) {
	err := domain.NewError(domain.KindNotFound, "mds.GetMarket", "market not found", domain.ErrMarketNotFound)
	require.NotEmpty(t, err.Error())
}
