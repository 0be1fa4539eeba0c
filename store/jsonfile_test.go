package store

import (
	"context"
	"testing"
	"time"

	"github.com/ryokushen/financial"
	"github.com/ryokushen/financial/date"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTransaction(id string, day int, amount string) financial.Transaction {
	return financial.Transaction{
		ID:            id,
		Date:          date.New(2026, time.March, day),
		Amount:        decimal.RequireFromString(amount),
		Category:      "groceries",
		Description:   "store " + id,
		CashAccountID: "checking",
	}
}

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := OpenFile(dir)
	require.NoError(t, err)

	require.NoError(t, f.SeedCashAccount(financial.CashAccount{
		ID: "checking", Name: "Checking", Type: "checking", Active: true,
		Balance: decimal.RequireFromString("100.00"),
	}))
	limit := decimal.RequireFromString("5000.00")
	require.NoError(t, f.SeedDebtAccount(financial.DebtAccount{
		ID: "visa", Name: "Visa", Balance: decimal.RequireFromString("250.00"),
		InterestRate: decimal.RequireFromString("19.99"), CreditLimit: &limit,
	}))

	// written out of date order on purpose, the file must come back sorted
	require.NoError(t, f.AddTransaction(ctx, testTransaction("t2", 20, "-12.50")))
	require.NoError(t, f.AddTransaction(ctx, testTransaction("t1", 5, "-30.00")))

	reopened, err := OpenFile(dir)
	require.NoError(t, err)

	txs, err := reopened.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, "t2", txs[1].ID)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("-30.00")))

	cash, err := reopened.CashAccount(ctx, "checking")
	require.NoError(t, err)
	assert.Equal(t, "Checking", cash.Name)
	assert.True(t, cash.Active)

	debt, err := reopened.DebtAccount(ctx, "visa")
	require.NoError(t, err)
	require.NotNil(t, debt.CreditLimit)
	assert.True(t, debt.CreditLimit.Equal(limit))
}

func TestFileUpdateDelete(t *testing.T) {
	ctx := context.Background()
	f, err := OpenFile(t.TempDir())
	require.NoError(t, err)

	tx := testTransaction("t1", 5, "-30.00")
	require.NoError(t, f.AddTransaction(ctx, tx))

	tx.Category = "dining"
	require.NoError(t, f.UpdateTransaction(ctx, "t1", tx))

	txs, err := f.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "dining", txs[0].Category)

	require.NoError(t, f.DeleteTransaction(ctx, "t1"))
	txs, err = f.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)

	err = f.DeleteTransaction(ctx, "t1")
	assert.True(t, financial.IsNotFound(err))
	err = f.UpdateTransaction(ctx, "t1", tx)
	assert.True(t, financial.IsNotFound(err))
}

func TestFileBalances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := OpenFile(dir)
	require.NoError(t, err)

	require.NoError(t, f.SeedDebtAccount(financial.DebtAccount{
		ID: "visa", Name: "Visa", Balance: decimal.RequireFromString("200.00"),
	}))
	require.NoError(t, f.UpdateDebtBalance(ctx, "visa", decimal.RequireFromString("170.00")))

	reopened, err := OpenFile(dir)
	require.NoError(t, err)
	debt, err := reopened.DebtAccount(ctx, "visa")
	require.NoError(t, err)
	assert.True(t, debt.Balance.Equal(decimal.RequireFromString("170.00")))

	err = f.UpdateCashBalance(ctx, "nope", decimal.Zero)
	assert.True(t, financial.IsNotFound(err))
	_, err = f.DebtAccount(ctx, "nope")
	assert.True(t, financial.IsNotFound(err))
}

func TestFileDuplicateAdd(t *testing.T) {
	ctx := context.Background()
	f, err := OpenFile(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, f.AddTransaction(ctx, testTransaction("t1", 5, "-30.00")))
	assert.Error(t, f.AddTransaction(ctx, testTransaction("t1", 6, "-40.00")))
}
