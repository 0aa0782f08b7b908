package wallets

import (
	"errors"

	pkgerrors "github.com/angelmondragon/fashionstore-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletInactive    = errors.New("wallet inactive")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrConcurrentUpdate  = errors.New("wallet modified concurrently")
)

// maxAmount is the largest value numeric(14,2) can hold.
var maxAmount = decimal.RequireFromString("999999999999.99")

func invalidAmount(amount decimal.Decimal, reason string) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidAmount, reason).
		WithDetails(map[string]any{"amount": amount.String()})
}

func insufficientFunds(balance, amount decimal.Decimal) error {
	return pkgerrors.Wrap(pkgerrors.CodeInsufficient, ErrInsufficientFunds, "insufficient wallet balance").
		WithDetails(map[string]any{
			"balance": balance.String(),
			"amount":  amount.String(),
		})
}

func walletInactive() error {
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrWalletInactive, "wallet is inactive")
}

func walletNotFound() error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrWalletNotFound, "wallet not found")
}

func concurrentUpdate() error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrConcurrentUpdate, "wallet was modified concurrently, retry the request")
}

// validateAmount accepts strictly positive values with at most two decimals.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalidAmount(amount, "amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return invalidAmount(amount, "amount supports at most two decimal places")
	}
	if amount.GreaterThan(maxAmount) {
		return invalidAmount(amount, "amount exceeds the maximum supported value")
	}
	return nil
}
