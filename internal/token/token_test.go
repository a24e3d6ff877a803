package token

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/banner-gacha/internal/apperr"
)

func TestCostForDraws(t *testing.T) {
	c := Cost{Name: "Star Stone", PerDraw: 160, PerTenDraw: 1500}
	tests := []struct {
		n    int
		want uint64
	}{
		{-1, 0},
		{0, 0},
		{1, 160},
		{9, 1440},
		{10, 1500},
		{12, 1820},
		{20, 3000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.ForDraws(tt.n), "n=%d", tt.n)
	}

	noBundle := Cost{PerDraw: 100}
	assert.Equal(t, uint64(1000), noBundle.ForDraws(10))
}

func TestMemoryWallet(t *testing.T) {
	ctx := context.Background()
	w := NewMemoryWallet()

	require.NoError(t, w.Deposit(ctx, "p1", 500))
	require.NoError(t, w.Withdraw(ctx, "p1", 200))

	err := w.Withdraw(ctx, "p1", 301)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, apperr.ClassResource, apperr.ClassOf(err))

	bal, err := w.Balance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), bal, "failed withdraw leaves balance unchanged")

	assert.True(t, errors.Is(w.Deposit(ctx, "p1", 0), ErrInvalidAmount))
}

func TestMemoryWalletRejectsOverflow(t *testing.T) {
	ctx := context.Background()
	w := NewMemoryWallet()
	require.NoError(t, w.Deposit(ctx, "p1", math.MaxUint64-10))

	err := w.Deposit(ctx, "p1", 11)
	assert.True(t, errors.Is(err, ErrBalanceOverflow))
	assert.Equal(t, apperr.ClassValidation, apperr.ClassOf(err))

	bal, err := w.Balance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-10), bal)

	require.NoError(t, w.Deposit(ctx, "p1", 10))
	bal, err = w.Balance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), bal)
}
