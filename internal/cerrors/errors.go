// Package cerrors categorizes failures across the pipeline so callers can
// decide between retrying, skipping a symbol, reconciling state, or
// halting startup.
package cerrors

import (
	"errors"
	"fmt"
)

// Category classifies an error by how the evaluation loop must react.
type Category string

const (
	// CategoryData covers missing or short candle history and stale
	// feeds. Reaction: fail closed, produce no signal this bar.
	CategoryData Category = "data"
	// CategoryExecution covers order placement and venue queries.
	// Transient ones retry with backoff, terminal ones abandon the
	// symbol's cycle.
	CategoryExecution Category = "execution"
	// CategoryState covers divergence between internal positions and
	// exchange truth. Reaction: reconcile with the exchange as ground
	// truth, log at high severity.
	CategoryState Category = "state"
	// CategoryConfig covers invalid parameter combinations. Reaction:
	// halt startup.
	CategoryConfig Category = "config"
)

// BotError is a categorized error with retry guidance.
type BotError struct {
	Category  Category
	Op        string
	Symbol    string
	Retryable bool
	Err       error
}

func (e *BotError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s [%s/%s]: %v", e.Op, e.Category, e.Symbol, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Category, e.Err)
}

func (e *BotError) Unwrap() error { return e.Err }

// New wraps err with a category.
func New(cat Category, op, symbol string, retryable bool, err error) *BotError {
	return &BotError{Category: cat, Op: op, Symbol: symbol, Retryable: retryable, Err: err}
}

// DataErr marks a fail-closed data problem.
func DataErr(op, symbol string, err error) *BotError {
	return New(CategoryData, op, symbol, false, err)
}

// ExecErr marks an execution failure; retryable selects backoff vs
// abandoning the cycle.
func ExecErr(op, symbol string, retryable bool, err error) *BotError {
	return New(CategoryExecution, op, symbol, retryable, err)
}

// StateErr marks an internal/exchange divergence.
func StateErr(op, symbol string, err error) *BotError {
	return New(CategoryState, op, symbol, false, err)
}

// ConfigErr marks a fatal startup configuration problem.
func ConfigErr(op string, err error) *BotError {
	return New(CategoryConfig, op, "", false, err)
}

// CategoryOf extracts the category, or "" for uncategorized errors.
func CategoryOf(err error) Category {
	var be *BotError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// IsRetryable reports whether the error is worth a bounded retry.
func IsRetryable(err error) bool {
	var be *BotError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}
