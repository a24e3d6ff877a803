// Package token prices draws and holds the currency collaborator the service charges.
package token

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/xtding233/banner-gacha/internal/apperr"
)

var (
	ErrInsufficientBalance = apperr.New(apperr.CodeInsufficientBalance, "insufficient balance")
	ErrInvalidAmount       = apperr.New(apperr.CodeInvalidInput, "amount must be positive")
	ErrBalanceOverflow     = apperr.New(apperr.CodeInvalidInput, "deposit would overflow balance")
)

// Cost defines how many tokens are required per draw
type Cost struct {
	Name       string `json:"name" yaml:"name"`                 // e.g. "Stellar Jade", "Star Stone"
	PerDraw    uint64 `json:"per_draw" yaml:"per_draw"`         // tokens per single draw, e.g. 160
	PerTenDraw uint64 `json:"per_ten_draw" yaml:"per_ten_draw"` // optional; 0 -> 10 * PerDraw
}

// ForDraws returns how many tokens are required for n draws. Full tens use the
// ten-draw price when one is set.
func (c Cost) ForDraws(n int) uint64 {
	if n <= 0 {
		return 0
	}
	if c.PerTenDraw > 0 && n >= 10 {
		tens := uint64(n / 10)
		rem := uint64(n % 10)
		return tens*c.PerTenDraw + rem*c.PerDraw
	}
	return uint64(n) * c.PerDraw
}

// Wallet is the currency custody collaborator.
type Wallet interface {
	Deposit(ctx context.Context, player string, amount uint64) error
	Withdraw(ctx context.Context, player string, amount uint64) error
	Balance(ctx context.Context, player string) (uint64, error)
}

// MemoryWallet keeps balances in process.
type MemoryWallet struct {
	mu       sync.Mutex
	balances map[string]uint64
}

func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{balances: make(map[string]uint64)}
}

func (w *MemoryWallet) Deposit(_ context.Context, player string, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	have := w.balances[player]
	if have > math.MaxUint64-amount {
		return fmt.Errorf("%w: have %d, deposit %d", ErrBalanceOverflow.WithMetadata("player", player), have, amount)
	}
	w.balances[player] = have + amount
	return nil
}

// Withdraw removes amount or fails without touching the balance.
func (w *MemoryWallet) Withdraw(_ context.Context, player string, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	have := w.balances[player]
	if have < amount {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientBalance.WithMetadata("player", player), amount, have)
	}
	w.balances[player] = have - amount
	return nil
}

func (w *MemoryWallet) Balance(_ context.Context, player string) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[player], nil
}
