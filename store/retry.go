package store

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/ryokushen/financial"
	"github.com/shopspring/decimal"
)

// Retry decorates a Store with exponential-backoff retries for transient
// failures (network blips against MySQL, a briefly locked file). Domain
// failures are permanent: a not-found is a not-found, retrying cannot help.
type Retry struct {
	inner   financial.Store
	newPlan func() backoff.BackOff
}

// WithRetry wraps inner with the default exponential backoff policy.
func WithRetry(inner financial.Store) *Retry {
	return &Retry{
		inner:   inner,
		newPlan: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// WithRetryPolicy wraps inner with a caller-supplied backoff factory, one
// fresh policy per call.
func WithRetryPolicy(inner financial.Store, newPlan func() backoff.BackOff) *Retry {
	return &Retry{inner: inner, newPlan: newPlan}
}

// retry runs op under the backoff plan, treating not-found as permanent.
func (r *Retry) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if errors.Is(err, financial.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(r.newPlan(), ctx))
}

func (r *Retry) Transactions(ctx context.Context) ([]financial.Transaction, error) {
	var txs []financial.Transaction
	err := r.retry(ctx, func() error {
		var err error
		txs, err = r.inner.Transactions(ctx)
		return err
	})
	return txs, err
}

func (r *Retry) AddTransaction(ctx context.Context, t financial.Transaction) error {
	return r.retry(ctx, func() error { return r.inner.AddTransaction(ctx, t) })
}

func (r *Retry) UpdateTransaction(ctx context.Context, id string, t financial.Transaction) error {
	return r.retry(ctx, func() error { return r.inner.UpdateTransaction(ctx, id, t) })
}

func (r *Retry) DeleteTransaction(ctx context.Context, id string) error {
	return r.retry(ctx, func() error { return r.inner.DeleteTransaction(ctx, id) })
}

func (r *Retry) CashAccount(ctx context.Context, id string) (financial.CashAccount, error) {
	var a financial.CashAccount
	err := r.retry(ctx, func() error {
		var err error
		a, err = r.inner.CashAccount(ctx, id)
		return err
	})
	return a, err
}

func (r *Retry) UpdateCashBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	return r.retry(ctx, func() error { return r.inner.UpdateCashBalance(ctx, id, balance) })
}

func (r *Retry) DebtAccount(ctx context.Context, id string) (financial.DebtAccount, error) {
	var a financial.DebtAccount
	err := r.retry(ctx, func() error {
		var err error
		a, err = r.inner.DebtAccount(ctx, id)
		return err
	})
	return a, err
}

func (r *Retry) UpdateDebtBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	return r.retry(ctx, func() error { return r.inner.UpdateDebtBalance(ctx, id, balance) })
}
