package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/ryokushen/financial"
	"github.com/ryokushen/financial/date"
	"github.com/shopspring/decimal"
)

// MySQL persists the state in a MySQL database. Amounts and balances are
// stored as DECIMAL columns and scanned through strings to avoid float
// round-trips. Schema:
//
//	CREATE TABLE transactions (
//	    id              VARCHAR(64) PRIMARY KEY,
//	    tx_date         DATE NOT NULL,
//	    amount          DECIMAL(15,2) NOT NULL,
//	    category        VARCHAR(128) NOT NULL,
//	    description     TEXT,
//	    cleared         BOOLEAN NOT NULL DEFAULT FALSE,
//	    cash_account_id VARCHAR(64),
//	    debt_account_id VARCHAR(64),
//	    linked_id       VARCHAR(64),
//	    notes           TEXT
//	);
//	CREATE TABLE cash_accounts (
//	    id      VARCHAR(64) PRIMARY KEY,
//	    name    VARCHAR(128) NOT NULL,
//	    type    VARCHAR(32),
//	    active  BOOLEAN NOT NULL DEFAULT TRUE,
//	    balance DECIMAL(15,2) NOT NULL DEFAULT 0
//	);
//	CREATE TABLE debt_accounts (
//	    id              VARCHAR(64) PRIMARY KEY,
//	    name            VARCHAR(128) NOT NULL,
//	    balance         DECIMAL(15,2) NOT NULL DEFAULT 0,
//	    interest_rate   DECIMAL(6,3) NOT NULL DEFAULT 0,
//	    minimum_payment DECIMAL(15,2) NOT NULL DEFAULT 0,
//	    credit_limit    DECIMAL(15,2)
//	);
type MySQL struct {
	db *sql.DB
}

// OpenMySQL connects with the given DSN and verifies the connection.
func OpenMySQL(dsn string) (*MySQL, error) {
	dsn, err := mysqlDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenMySQL: %w", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenMySQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("OpenMySQL: ping failed: %w", err)
	}
	return &MySQL{db: db}, nil
}

// mysqlDSN normalizes the DSN before opening. CLIENT_FOUND_ROWS is required:
// the driver otherwise reports changed rows for an UPDATE, so a write that
// re-asserts the current values would count zero rows and be mistaken for a
// missing record by requireRow.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

// Close releases the underlying connection pool.
func (s *MySQL) Close() error { return s.db.Close() }

func (s *MySQL) Transactions(ctx context.Context) ([]financial.Transaction, error) {
	query := "SELECT id, tx_date, amount, category, description, cleared, cash_account_id, debt_account_id, linked_id, notes FROM transactions ORDER BY tx_date, id"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("Transactions: %w", err)
	}
	defer rows.Close()

	var txs []financial.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("Transactions: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Transactions: rows iteration error: %w", err)
	}
	return txs, nil
}

// scanTransaction reads one transactions row.
func scanTransaction(rows *sql.Rows) (financial.Transaction, error) {
	var (
		t			financial.Transaction
		txDate, amount		string
		description, notes	sql.NullString
		cashID, debtID, link	sql.NullString
	)
	err := rows.Scan(&t.ID, &txDate, &amount, &t.Category, &description, &t.Cleared, &cashID, &debtID, &link, &notes)
	if err != nil {
		return t, err
	}
	if t.Date, err = date.Parse(txDate); err != nil {
		return t, fmt.Errorf("transaction %q: %w", t.ID, err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("transaction %q: %w", t.ID, err)
	}
	t.Description = description.String
	t.Notes = notes.String
	t.CashAccountID = cashID.String
	t.DebtAccountID = debtID.String
	t.LinkedID = link.String
	return t, nil
}

// nullable converts an optional string to its SQL representation.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *MySQL) AddTransaction(ctx context.Context, t financial.Transaction) error {
	query := "INSERT INTO transactions (id, tx_date, amount, category, description, cleared, cash_account_id, debt_account_id, linked_id, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Date.String(), t.Amount.StringFixed(2), t.Category, nullable(t.Description),
		t.Cleared, nullable(t.CashAccountID), nullable(t.DebtAccountID), nullable(t.LinkedID), nullable(t.Notes))
	if err != nil {
		return fmt.Errorf("AddTransaction: %w", err)
	}
	return nil
}

func (s *MySQL) UpdateTransaction(ctx context.Context, id string, t financial.Transaction) error {
	query := "UPDATE transactions SET id = ?, tx_date = ?, amount = ?, category = ?, description = ?, cleared = ?, cash_account_id = ?, debt_account_id = ?, linked_id = ?, notes = ? WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query,
		t.ID, t.Date.String(), t.Amount.StringFixed(2), t.Category, nullable(t.Description),
		t.Cleared, nullable(t.CashAccountID), nullable(t.DebtAccountID), nullable(t.LinkedID), nullable(t.Notes), id)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	return requireRow(result, &financial.NotFoundError{Kind: "transaction", ID: id})
}

func (s *MySQL) DeleteTransaction(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return requireRow(result, &financial.NotFoundError{Kind: "transaction", ID: id})
}

func (s *MySQL) CashAccount(ctx context.Context, id string) (financial.CashAccount, error) {
	var (
		a	financial.CashAccount
		typ	sql.NullString
		balance	string
	)
	query := "SELECT id, name, type, active, balance FROM cash_accounts WHERE id = ?"
	err := s.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Name, &typ, &a.Active, &balance)
	if err == sql.ErrNoRows {
		return a, &financial.NotFoundError{Kind: "cash account", ID: id}
	}
	if err != nil {
		return a, fmt.Errorf("CashAccount: %w", err)
	}
	a.Type = typ.String
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return a, fmt.Errorf("CashAccount %q: %w", id, err)
	}
	return a, nil
}

func (s *MySQL) UpdateCashBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	result, err := s.db.ExecContext(ctx, "UPDATE cash_accounts SET balance = ? WHERE id = ?", balance.StringFixed(2), id)
	if err != nil {
		return fmt.Errorf("UpdateCashBalance: %w", err)
	}
	return requireRow(result, &financial.NotFoundError{Kind: "cash account", ID: id})
}

func (s *MySQL) DebtAccount(ctx context.Context, id string) (financial.DebtAccount, error) {
	var (
		a			financial.DebtAccount
		balance, rate, minimum	string
		creditLimit		sql.NullString
	)
	query := "SELECT id, name, balance, interest_rate, minimum_payment, credit_limit FROM debt_accounts WHERE id = ?"
	err := s.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Name, &balance, &rate, &minimum, &creditLimit)
	if err == sql.ErrNoRows {
		return a, &financial.NotFoundError{Kind: "debt account", ID: id}
	}
	if err != nil {
		return a, fmt.Errorf("DebtAccount: %w", err)
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return a, fmt.Errorf("DebtAccount %q: %w", id, err)
	}
	if a.InterestRate, err = decimal.NewFromString(rate); err != nil {
		return a, fmt.Errorf("DebtAccount %q: %w", id, err)
	}
	if a.MinimumPayment, err = decimal.NewFromString(minimum); err != nil {
		return a, fmt.Errorf("DebtAccount %q: %w", id, err)
	}
	if creditLimit.Valid {
		limit, err := decimal.NewFromString(creditLimit.String)
		if err != nil {
			return a, fmt.Errorf("DebtAccount %q: %w", id, err)
		}
		a.CreditLimit = &limit
	}
	return a, nil
}

func (s *MySQL) UpdateDebtBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	result, err := s.db.ExecContext(ctx, "UPDATE debt_accounts SET balance = ? WHERE id = ?", balance.StringFixed(2), id)
	if err != nil {
		return fmt.Errorf("UpdateDebtBalance: %w", err)
	}
	return requireRow(result, &financial.NotFoundError{Kind: "debt account", ID: id})
}

// requireRow maps a zero-row update or delete to the given not-found error.
func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected failed: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
